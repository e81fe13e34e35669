// Package slug builds the URL segments of published levels.
//
// Make lowercases its input, folds common Latin diacritics to ASCII and
// collapses every run of other characters into a single separator:
//
//	slug.Make("Café  Crème!") // "cafe-creme"
//
// Path joins several slugs with "/", which is how a level's public URL is
// formed from its author and name:
//
//	slug.Path("Bob", "My First Level") // "bob/my-first-level"
package slug
