// Package panel serves the browser control page as embedded assets.
//
// The page shows the current gate status, pushed over the WebSocket channel,
// and offers one button per gate command. Unknown paths fall back to
// index.html so bookmarks to old routes still land on the control page.
package panel
