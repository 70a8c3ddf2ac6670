// Package enhance asks a chat-completion model for a visual theme and for
// per-post captions, falling back to static defaults whenever the model is
// unavailable or says something unusable.
package enhance

import "quirkfeed/internal/reddit"

// Layout styles a theme may ask for.
const (
	LayoutGrid    = "grid"
	LayoutMasonry = "masonry"
	LayoutList    = "list"
	LayoutCards   = "cards"
)

// Animation styles a theme may ask for.
const (
	AnimationSubtle  = "subtle"
	AnimationBouncy  = "bouncy"
	AnimationGlitchy = "glitchy"
	AnimationSmooth  = "smooth"
	AnimationChaotic = "chaotic"
)

var (
	Layouts    = []string{LayoutGrid, LayoutMasonry, LayoutList, LayoutCards}
	Animations = []string{AnimationSubtle, AnimationBouncy, AnimationGlitchy, AnimationSmooth, AnimationChaotic}
)

// Theme is a complete page look. Every field is set on any Theme handed
// out by this package.
type Theme struct {
	PrimaryColor    string `json:"primaryColor"`
	SecondaryColor  string `json:"secondaryColor"`
	AccentColor     string `json:"accentColor"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	FontFamily      string `json:"fontFamily"`
	BorderRadius    string `json:"borderRadius"`
	LayoutStyle     string `json:"layoutStyle"`
	Mood            string `json:"mood"`
	Animation       string `json:"animation"`
}

// EnhancedPost is a post with its generated annotation.
type EnhancedPost struct {
	reddit.Post
	AICaption     string `json:"aiCaption"`
	AIPersonality string `json:"aiPersonality"`
	Mood          string `json:"mood"`
}
