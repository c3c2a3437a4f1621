package blob

import "fmt"

// Variants are the display sizes the gallery uses for one stored image.
type Variants struct {
	Thumb string `json:"thumb"`
	Modal string `json:"modal"`
	Full  string `json:"full"`
}

// VariantURL derives a resized image reference from a stored object URL and
// target dimensions. Pure function: same inputs, same output. The resize
// parameters are interpreted by the image proxy in front of the store.
func VariantURL(url string, width, height int) string {
	if width <= 0 && height <= 0 {
		return url
	}
	sep := "?"
	for _, c := range url {
		if c == '?' {
			sep = "&"
			break
		}
	}
	switch {
	case height <= 0:
		return fmt.Sprintf("%s%sw=%d", url, sep, width)
	case width <= 0:
		return fmt.Sprintf("%s%sh=%d", url, sep, height)
	default:
		return fmt.Sprintf("%s%sw=%d&h=%d", url, sep, width, height)
	}
}

// VariantsFor derives the gallery's three standard sizes.
func VariantsFor(url string) Variants {
	return Variants{
		Thumb: VariantURL(url, 400, 0),
		Modal: VariantURL(url, 1080, 0),
		Full:  VariantURL(url, 0, 0),
	}
}
