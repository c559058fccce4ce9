// Package pagination walks the INSPIRE search results page by page.
//
// INSPIRE's legacy search does not report a total count in a way the
// harvester can rely on, so pages are requested with a 1-based running
// offset (jrec) until a page comes back without records. Pages are fetched
// strictly one after another with a fixed pause in between.
//
// Example usage:
//
//	c, _ := client.New(client.DefaultConfig("inspire-names/1.0 (ops@example.org)"))
//	f := pagination.NewFetcher(c, pagination.DefaultConfig())
//	records, err := f.FetchAll(ctx, 250)
//
// The fetcher:
//   - Starts at offset 1 and advances by the page size
//   - Parses every page as MARCXML
//   - Stops at the first empty page
//   - Aborts on the first page that cannot be fetched or parsed
package pagination
