package inject

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Options configure the default injector.
type Options struct {
	PreferPaste bool
	// Clipboard defaults to the system clipboard.
	Clipboard Clipboard
	Logger    zerolog.Logger
}

type pasteInjector struct {
	opts Options
	clip Clipboard
	log  zerolog.Logger
}

// New creates a new text injector
func New(opts Options) Injector {
	clip := opts.Clipboard
	if clip == nil {
		clip = SystemClipboard()
	}
	return &pasteInjector{
		opts: opts,
		clip: clip,
		log:  opts.Logger.With().Str("component", "inject").Logger(),
	}
}

// Paste injects text using clipboard + paste shortcut
// Implementation is platform-specific (see paste_darwin.go, paste_other.go)
func (p *pasteInjector) Paste(ctx context.Context, text string) error {
	return platformPaste(ctx, p.clip, text)
}

// Type injects text using keyboard simulation
func (p *pasteInjector) Type(ctx context.Context, text string) error {
	return platformType(ctx, text)
}

// PasteOrType tries paste first, falls back to type if needed. When the
// platform can do neither, the text is left on the clipboard.
func (p *pasteInjector) PasteOrType(ctx context.Context, text string) error {
	if p.opts.PreferPaste {
		err := p.Paste(ctx, text)
		if err == nil {
			return nil
		}
		p.log.Debug().Err(err).Msg("Paste failed, trying to type")
	}

	err := p.Type(ctx, text)
	if err == nil || !errors.Is(err, ErrUnsupported) {
		return err
	}

	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	p.log.Info().Int("chars", len(text)).Msg("Copied to clipboard")
	return nil
}
