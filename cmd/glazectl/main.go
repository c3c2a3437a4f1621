// glazectl drives the dashboard API from the terminal. Every mutating
// command goes through the same edit gate the web dashboard uses: the first
// mutation prompts for the edit password, unlocks the view server-side, and
// is then re-invoked.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/apiclient"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/dashboard"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/editgate"
	"github.com/HH-pro/glazeme-dashboard-sub000/internal/store"
)

const usage = `usage: glazectl [flags] <command> [args]

commands:
  updates      list | add -title ... | rm <id>
  reviews      list | add -client ... | rm <id>
  screenshots  list | add -file ... | rm <id>
  milestones   list | add -title ... | rm <id>
  weeks        list | add -week ... | rm <id>
  deployments  list | add -env ... | rm <id>
  stats
  search <query>

flags:
  -api URL        API base URL (default http://localhost:8686, env GLAZEME_API)
  -password PW    login password (env GLAZEME_PASSWORD)
  -edit PW        edit-mode password (env GLAZEME_EDIT_PASSWORD)
  -yes            skip delete confirmation prompts
`

type cli struct {
	client   *apiclient.Client
	editPass string
	yes      bool
	stdin    *bufio.Reader
}

func main() {
	globals := flag.NewFlagSet("glazectl", flag.ExitOnError)
	globals.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	apiURL := globals.String("api", envOr("GLAZEME_API", "http://localhost:8686"), "API base URL")
	password := globals.String("password", os.Getenv("GLAZEME_PASSWORD"), "login password")
	editPass := globals.String("edit", os.Getenv("GLAZEME_EDIT_PASSWORD"), "edit-mode password")
	yes := globals.Bool("yes", false, "skip delete confirmation prompts")
	_ = globals.Parse(os.Args[1:])

	args := globals.Args()
	if len(args) == 0 {
		globals.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app := &cli{
		client:   apiclient.New(*apiURL),
		editPass: *editPass,
		yes:      *yes,
		stdin:    bufio.NewReader(os.Stdin),
	}

	login := *password
	if login == "" {
		login = app.prompt("password: ")
	}
	role, err := app.client.Login(ctx, login)
	if err != nil {
		fatal(err)
	}
	defer app.client.Logout(context.Background())
	fmt.Fprintf(os.Stderr, "logged in as %s\n", role)

	if err := app.run(ctx, args[0], args[1:]); err != nil {
		fatal(err)
	}
}

func (a *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "updates":
		return runCollection(ctx, a, "updates", a.client.Updates(), args, a.addUpdate, updateRow)
	case "reviews":
		return runCollection(ctx, a, "reviews", a.client.Reviews(), args, a.addReview, reviewRow)
	case "screenshots":
		return runCollection(ctx, a, "screenshots", a.client.Screenshots(), args, a.addScreenshot, screenshotRow)
	case "milestones":
		return runCollection(ctx, a, "milestones", a.client.Milestones(), args, a.addMilestone, milestoneRow)
	case "weeks":
		return runCollection(ctx, a, "weeks", a.client.Weeks(), args, a.addWeek, weekRow)
	case "deployments":
		return runCollection(ctx, a, "deployments", a.client.Deployments(), args, a.addDeployment, deploymentRow)
	case "stats":
		return a.runStats(ctx)
	case "search":
		return a.runSearch(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// addFunc builds the record to create from the subcommand arguments. It runs
// once the gate is unlocked; screenshot uploads bypass the generic create.
type addFunc[T dashboard.Identifiable] func(ctx context.Context, ctrl *dashboard.Controller[T], args []string) error

func runCollection[T dashboard.Identifiable](ctx context.Context, a *cli, view string, gateway dashboard.Gateway[T], args []string, add addFunc[T], row func(T) []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: glazectl %s list|add|rm", view)
	}

	gate := editgate.New(func(password string) error {
		return a.client.UnlockEditMode(ctx, view, password)
	})
	ctrl := dashboard.NewController(view, gateway, gate,
		dashboard.WithChallenge[T](a.challenge),
		dashboard.WithConfirm[T](a.confirmDelete),
	)

	switch args[0] {
	case "list":
		if err := ctrl.Refresh(ctx); err != nil {
			return err
		}
		items := ctrl.Items()
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, item := range items {
			fmt.Fprintln(writer, strings.Join(row(item), "\t"))
		}
		return writer.Flush()
	case "add":
		return withGateRetry(func() error { return add(ctx, ctrl, args[1:]) })
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: glazectl %s rm <id>", view)
		}
		return withGateRetry(func() error { return ctrl.Remove(ctx, args[1]) })
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

// withGateRetry re-invokes a mutation exactly once after the controller's
// challenge unlocked the gate. The controller itself never replays.
func withGateRetry(fn func() error) error {
	err := fn()
	if errors.Is(err, editgate.ErrLocked) {
		err = fn()
	}
	return err
}

func (a *cli) challenge(view string) (string, bool) {
	if a.editPass != "" {
		return a.editPass, true
	}
	answer := a.prompt(fmt.Sprintf("edit password for %s: ", view))
	return answer, answer != ""
}

func (a *cli) confirmDelete(id string) bool {
	if a.yes {
		return true
	}
	answer := a.prompt(fmt.Sprintf("delete %s? [y/N] ", id))
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func (a *cli) prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := a.stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func (a *cli) addUpdate(ctx context.Context, ctrl *dashboard.Controller[store.BuildUpdate], args []string) error {
	fs := flag.NewFlagSet("updates add", flag.ExitOnError)
	title := fs.String("title", "", "update title")
	description := fs.String("description", "", "description")
	version := fs.String("version", "", "version label")
	status := fs.String("status", "planned", "planned|in-progress|completed")
	additions := fs.Int("additions", 0, "lines added")
	_ = fs.Parse(args)

	created, err := ctrl.Add(ctx, store.BuildUpdate{
		Title:       *title,
		Description: *description,
		Version:     *version,
		Status:      *status,
		Additions:   *additions,
	})
	if err != nil {
		return err
	}
	fmt.Println(created.ID)
	return nil
}

func (a *cli) addReview(ctx context.Context, ctrl *dashboard.Controller[store.ClientReview], args []string) error {
	fs := flag.NewFlagSet("reviews add", flag.ExitOnError)
	client := fs.String("client", "", "client name")
	summary := fs.String("summary", "", "review summary")
	rating := fs.Int("rating", 5, "rating 1..5")
	_ = fs.Parse(args)

	created, err := ctrl.Add(ctx, store.ClientReview{
		ClientName: *client,
		Summary:    *summary,
		Rating:     *rating,
	})
	if err != nil {
		return err
	}
	fmt.Println(created.ID)
	return nil
}

func (a *cli) addScreenshot(ctx context.Context, ctrl *dashboard.Controller[store.ScreenCapture], args []string) error {
	fs := flag.NewFlagSet("screenshots add", flag.ExitOnError)
	path := fs.String("file", "", "image file to upload")
	title := fs.String("title", "", "screenshot title")
	caption := fs.String("caption", "", "caption")
	folder := fs.String("folder", "", "folder")
	width := fs.Int("width", 0, "pixel width")
	height := fs.Int("height", 0, "pixel height")
	_ = fs.Parse(args)

	if *path == "" {
		return errors.New("screenshots add requires -file")
	}
	file, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer file.Close()

	// Uploads use the multipart route, but the gate contract is the same:
	// a locked gate withholds the upload and opens the challenge.
	created, err := a.client.UploadScreenshot(ctx, apiclient.ScreenshotUpload{
		Title:    *title,
		Caption:  *caption,
		Folder:   *folder,
		Width:    *width,
		Height:   *height,
		Filename: file.Name(),
		File:     file,
	})
	if err != nil {
		if apiclient.IsCode(err, "EDIT_LOCKED") {
			password, ok := a.challenge("screenshots")
			if !ok {
				return err
			}
			if unlockErr := a.client.UnlockEditMode(ctx, "screenshots", password); unlockErr != nil {
				return unlockErr
			}
			return editgate.ErrLocked
		}
		return err
	}
	fmt.Println(created.ID)
	return nil
}

func (a *cli) addMilestone(ctx context.Context, ctrl *dashboard.Controller[store.TechnicalMilestone], args []string) error {
	fs := flag.NewFlagSet("milestones add", flag.ExitOnError)
	title := fs.String("title", "", "milestone title")
	description := fs.String("description", "", "description")
	category := fs.String("category", "", "category")
	tokens := fs.Int("tokens", 0, "token count")
	completed := fs.Bool("completed", false, "completed")
	success := fs.Bool("success", false, "successful")
	_ = fs.Parse(args)

	created, err := ctrl.Add(ctx, store.TechnicalMilestone{
		Title:       *title,
		Description: *description,
		Category:    *category,
		Tokens:      *tokens,
		Completed:   *completed,
		Success:     *success,
	})
	if err != nil {
		return err
	}
	fmt.Println(created.ID)
	return nil
}

func (a *cli) addWeek(ctx context.Context, ctrl *dashboard.Controller[store.Week], args []string) error {
	fs := flag.NewFlagSet("weeks add", flag.ExitOnError)
	weekNumber := fs.Int("week", 1, "week number")
	title := fs.String("title", "", "week title")
	summary := fs.String("summary", "", "summary")
	_ = fs.Parse(args)

	created, err := ctrl.Add(ctx, store.Week{
		WeekNumber: *weekNumber,
		Title:      *title,
		Summary:    *summary,
	})
	if err != nil {
		return err
	}
	fmt.Println(created.ID)
	return nil
}

func (a *cli) addDeployment(ctx context.Context, ctrl *dashboard.Controller[store.Deployment], args []string) error {
	fs := flag.NewFlagSet("deployments add", flag.ExitOnError)
	environment := fs.String("env", "", "environment")
	platform := fs.String("platform", "", "platform")
	version := fs.String("version", "", "version")
	status := fs.String("status", "planned", "planned|in-progress|deployed|failed")
	notes := fs.String("notes", "", "notes")
	_ = fs.Parse(args)

	created, err := ctrl.Add(ctx, store.Deployment{
		Environment: *environment,
		Platform:    *platform,
		Version:     *version,
		Status:      *status,
		Notes:       *notes,
	})
	if err != nil {
		return err
	}
	fmt.Println(created.ID)
	return nil
}

func (a *cli) runStats(ctx context.Context) error {
	stats, err := a.client.Stats(ctx)
	if err != nil {
		return err
	}
	sections := make([]string, 0, len(stats))
	for section := range stats {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, section := range sections {
		fields, ok := stats[section].(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(writer, "%s.%s\t%v\n", section, key, fields[key])
		}
	}
	return writer.Flush()
}

func (a *cli) runSearch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: glazectl search <query>")
	}
	response, err := a.client.Search(ctx, strings.Join(args, " "), 20)
	if err != nil {
		return err
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, result := range response.Results {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", result.Type, result.ID, result.Title, result.Snippet)
	}
	return writer.Flush()
}

func updateRow(u store.BuildUpdate) []string {
	return []string{u.ID, u.Status, u.Version, u.Title}
}

func reviewRow(r store.ClientReview) []string {
	return []string{r.ID, fmt.Sprintf("%d/5", r.Rating), r.ClientName, r.Summary}
}

func screenshotRow(s store.ScreenCapture) []string {
	return []string{s.ID, s.Folder, s.Title, s.URL}
}

func milestoneRow(m store.TechnicalMilestone) []string {
	status := "pending"
	if m.Completed {
		status = "failed"
		if m.Success {
			status = "done"
		}
	}
	return []string{m.ID, status, m.Category, m.Title}
}

func weekRow(w store.Week) []string {
	return []string{w.ID, fmt.Sprintf("week %d", w.WeekNumber), w.Title}
}

func deploymentRow(d store.Deployment) []string {
	return []string{d.ID, d.Status, d.Environment, d.Version}
}

func envOr(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "glazectl:", err)
	os.Exit(1)
}
