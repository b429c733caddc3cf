package finder

// DefaultKeywords are the search terms used when the caller supplies none.
var DefaultKeywords = []string{
	"charity near me",
	"NGO near me",
	"food bank near me",
	"shelter near me",
	"orphanage near me",
	"donation center near me",
	"blood bank near me",
	"homeless shelter near me",
	"soup kitchen near me",
	"community center near me",
	"nonprofit organization near me",
	"animal shelter near me",
	"salvation army near me",
	"red cross near me",
}
