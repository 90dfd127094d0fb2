// Package sitesync implements the synchronization protocol between field
// sites and the central record store.
//
// A site logs in with its API key and receives a short-lived JWT carrying
// its site and coordination identity. Uploads apply INSERT, UPDATE and
// DELETE modifications in one transaction under the site's ownership
// scope: updates are guarded by an optimistic version check, stale updates
// become sync_conflicts rows rather than failures, and deletes are
// last-write-wins. Downloads page through records owned by other sites
// using a sync_timestamp cursor; confirm reports the client-side outcome
// and stamps the site's last successful sync.
package sitesync
