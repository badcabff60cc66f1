package ir

// Well-known property names used by the engine itself. Every other property
// name is opaque and comes from the dependency table.
const (
	PropFolders       = "folders"
	PropPages         = "pages"
	PropFiles         = "files"
	PropImages        = "images"
	PropTags          = "tags"
	PropContent       = "content"
	PropURL           = "url"
	PropOnline        = "online"
	PropPageStatus    = "pagestatus"
	PropBinaryContent = "binarycontent"
	PropLanguageSet   = "languageset"
	PropPageVariants  = "pagevariants"
)

// ContainsProperty reports whether props contains name.
func ContainsProperty(props []string, name string) bool {
	for _, p := range props {
		if p == name {
			return true
		}
	}
	return false
}
