// Package checkpoint persists interrupted follower scrapes so that
// `linkreach scrape --resume` continues from the last fetched page instead
// of starting over. One JSON file is kept per scraped profile and replaced
// atomically after every page.
package checkpoint
