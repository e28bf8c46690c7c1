package dom

import "sync"

// Browser is an in-memory Window that records navigation. Confirm
// answers with a fixed reply that callers may change per request.
type Browser struct {
	mu        sync.Mutex
	confirm   bool
	prompts   []string
	opened    []string
	redirects []string
}

var _ Window = (*Browser)(nil)

// NewBrowser returns a Browser whose Confirm answers confirm.
func NewBrowser(confirm bool) *Browser {
	return &Browser{confirm: confirm}
}

// SetConfirm changes the answer given to subsequent prompts.
func (b *Browser) SetConfirm(confirm bool) {
	b.mu.Lock()
	b.confirm = confirm
	b.mu.Unlock()
}

func (b *Browser) Confirm(message string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, message)
	return b.confirm
}

func (b *Browser) Open(url string) {
	b.mu.Lock()
	b.opened = append(b.opened, url)
	b.mu.Unlock()
}

func (b *Browser) Redirect(url string) {
	b.mu.Lock()
	b.redirects = append(b.redirects, url)
	b.mu.Unlock()
}

// Prompts returns every confirmation message shown.
func (b *Browser) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

// Opened returns every URL opened in a new tab.
func (b *Browser) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// TakeOpened returns and forgets the URLs opened in new tabs.
func (b *Browser) TakeOpened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.opened
	b.opened = nil
	return out
}

// Redirects returns every navigation of the current tab.
func (b *Browser) Redirects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.redirects...)
}

// TakeRedirect returns and forgets the most recent navigation.
func (b *Browser) TakeRedirect() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.redirects) == 0 {
		return "", false
	}
	last := b.redirects[len(b.redirects)-1]
	b.redirects = nil
	return last, true
}
