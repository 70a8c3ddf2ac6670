package enhance

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

var webSafeFonts = []string{
	"Arial", "Helvetica", "Times New Roman", "Courier", "Courier New", "Verdana",
	"Georgia", "Palatino", "Garamond", "Comic Sans MS", "Trebuchet MS", "Impact",
}

// IsWebSafeFont reports whether name ships with browsers and needs no
// stylesheet.
func IsWebSafeFont(name string) bool {
	return slices.Contains(webSafeFonts, strings.TrimSpace(name))
}

// FontStylesheetURL returns the Google Fonts stylesheet for name, or "" for
// web-safe fonts.
func FontStylesheetURL(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || IsWebSafeFont(name) {
		return ""
	}
	family := strings.ReplaceAll(url.QueryEscape(name), "%20", "+")
	return "https://fonts.googleapis.com/css2?family=" + family + ":wght@400;700&display=swap"
}

var animationClasses = map[string]string{
	AnimationSubtle:  "animate-fade-in",
	AnimationBouncy:  "animate-bounce-in",
	AnimationGlitchy: "animate-glitch",
	AnimationSmooth:  "animate-slide-in",
	AnimationChaotic: "animate-chaos",
}

// AnimationClass maps an animation style to its CSS class; unknown styles
// get the subtle one.
func AnimationClass(animation string) string {
	if c, ok := animationClasses[strings.ToLower(animation)]; ok {
		return c
	}
	return animationClasses[AnimationSubtle]
}

// ContrastColor picks black or white text for a hex background by its
// perceived luminance. Unparseable input gets white.
func ContrastColor(hex string) string {
	c := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(c) == 3 || len(c) == 4 {
		c = string([]byte{c[0], c[0], c[1], c[1], c[2], c[2]})
	}
	if len(c) < 6 {
		return "#FFFFFF"
	}
	rgb, err := strconv.ParseUint(c[:6], 16, 32)
	if err != nil {
		return "#FFFFFF"
	}
	r := float64(rgb >> 16 & 0xff)
	g := float64(rgb >> 8 & 0xff)
	b := float64(rgb & 0xff)
	if (0.299*r+0.587*g+0.114*b)/255 > 0.5 {
		return "#000000"
	}
	return "#FFFFFF"
}
