package reddit

// DefaultChannels is the curated list of odd, image-heavy subreddits.
var DefaultChannels = []string{
	"hmmm",
	"interdimensionalcable",
	"WhatIsThisThing",
	"CrappyDesign",
	"ATBGE", // Awful Taste But Great Execution
	"blursedimages",
	"oddlysatisfying",
	"mildlyinteresting",
	"NotMyJob",
	"Pareidolia",
	"StockPhotos",
	"oddlyspecific",
	"BrandNewSentence",
	"me_irl",
	"surrealmemes",
	"cursedcomments",
	"BeAmazed",
	"Damnthatsinteresting",
	"DidntKnowIWantedThat",
	"blackmagicfuckery",
}
