package enhance

const (
	defaultPersonality = "mysterious stranger"
	defaultMood        = "curious"

	failedPersonality = "confused AI"
	failedMood        = "uncertain"
)

// DefaultThemes are served when theme generation fails.
var DefaultThemes = []Theme{
	{
		PrimaryColor:    "#FF00FF",
		SecondaryColor:  "#00FFFF",
		AccentColor:     "#FFFF00",
		BackgroundColor: "#000000",
		TextColor:       "#00FF00",
		FontFamily:      "Comic Sans MS",
		BorderRadius:    "69px",
		LayoutStyle:     LayoutMasonry,
		Mood:            "neon nightmare",
		Animation:       AnimationGlitchy,
	},
	{
		PrimaryColor:    "#FF1493",
		SecondaryColor:  "#7FFF00",
		AccentColor:     "#FF4500",
		BackgroundColor: "#FFFFFF",
		TextColor:       "#8B008B",
		FontFamily:      "Papyrus",
		BorderRadius:    "0px",
		LayoutStyle:     LayoutGrid,
		Mood:            "digital psychosis",
		Animation:       AnimationChaotic,
	},
	{
		PrimaryColor:    "#39FF14",
		SecondaryColor:  "#FF006E",
		AccentColor:     "#00D9FF",
		BackgroundColor: "#0D0D0D",
		TextColor:       "#FFFFFF",
		FontFamily:      "Impact",
		BorderRadius:    "999px",
		LayoutStyle:     LayoutCards,
		Mood:            "reality dissolution",
		Animation:       AnimationGlitchy,
	},
	{
		PrimaryColor:    "#FF073A",
		SecondaryColor:  "#FFD700",
		AccentColor:     "#00BFFF",
		BackgroundColor: "#2F004F",
		TextColor:       "#39FF14",
		FontFamily:      "Courier New",
		BorderRadius:    "23px",
		LayoutStyle:     LayoutList,
		Mood:            "manic pixels",
		Animation:       AnimationChaotic,
	},
	{
		PrimaryColor:    "#FF6EC7",
		SecondaryColor:  "#00FF9F",
		AccentColor:     "#FFEA00",
		BackgroundColor: "#1B0034",
		TextColor:       "#FFFFFF",
		FontFamily:      "Georgia",
		BorderRadius:    "15px",
		LayoutStyle:     LayoutMasonry,
		Mood:            "vaporwave hell",
		Animation:       AnimationGlitchy,
	},
}

// DefaultCaptions fill in for captions the model did not write.
var DefaultCaptions = []string{
	"this image contains secrets the GOVERNMENT doesn't want you to see",
	"POV: You've breached containment",
	"i can taste colors now and they taste like SCREAMING",
	"this activated something PRIMAL in my consciousness",
	"The timeline fractured here. THIS is where it all went wrong.",
	"why does this image know my NAME",
	"this was taken 3 seconds before the incident",
	"BROTHERS. THE PROPHECY. IT'S HAPPENING.",
	"i showed this to my therapist and now SHE needs therapy",
	"this image is perceiving ME back",
	"delete this before THEY find it",
	"tag yourself i'm the void in the background",
}
