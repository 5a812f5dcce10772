package reply

import "sync"

// Instructions holds operator-supplied text prepended to every generation prompt.
type Instructions struct {
	mu   sync.RWMutex
	text string
}

func NewInstructions(text string) *Instructions {
	return &Instructions{text: text}
}

func (i *Instructions) Set(text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.text = text
}

func (i *Instructions) Get() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.text
}
