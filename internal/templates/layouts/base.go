package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4"

// popupStyles is static; the cockpit's own button classes are not cloned.
const popupStyles = `
.checkouts-overlay{position:fixed;top:0;left:0;width:100%;height:100%;background-color:rgba(0,0,0,.5);z-index:9999}
.checkouts-popup{position:fixed;top:50%;left:50%;transform:translate(-50%,-50%);background-color:#fff;padding:20px;border:1px solid #000;z-index:10000;max-height:80%;overflow-y:auto}
.checkouts-popup table{width:100%;border-collapse:collapse}
.checkouts-popup th,.checkouts-popup td{border:1px solid #000;padding:5px}
.checkouts-close{margin-bottom:10px}
`

// Base wraps body in the page shell with htmx loaded and a single modal slot.
func Base(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title><script src="`+htmxSrc+`"></script><style>`+popupStyles+
			`</style></head><body>`); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<div id="checkouts-modal"></div></body></html>`)
		return err
	})
}
