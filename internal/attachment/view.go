/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JB-SelfCompany/attachmail/internal/config"
)

var ErrViewNotFound = errors.New("view type not found")

// View is an alternate presentation of an attachment.
type View interface {
	Attachment() *Attachment
}

type ViewFactory func(*Attachment) View

// ViewRegistry maps view selectors to their factories.
type ViewRegistry struct {
	mu        sync.RWMutex
	factories map[string]ViewFactory
}

// NewViewRegistry returns a registry holding the built-in views.
func NewViewRegistry() *ViewRegistry {
	r := &ViewRegistry{factories: make(map[string]ViewFactory)}
	r.Register(config.DefaultMask, NewAttachmentView)
	r.Register("summary", NewSummaryView)
	return r
}

func (r *ViewRegistry) Register(selector string, f ViewFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[selector] = f
}

func (r *ViewRegistry) Lookup(selector string) (ViewFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[selector]
	return f, ok
}

// Selectors lists the registered selectors in sorted order.
func (r *ViewRegistry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	selectors := make([]string, 0, len(r.factories))
	for s := range r.factories {
		selectors = append(selectors, s)
	}
	sort.Strings(selectors)
	return selectors
}

// DefaultViews is used by attachments created without WithViewRegistry.
var DefaultViews = NewViewRegistry()

func RegisterView(selector string, f ViewFactory) {
	DefaultViews.Register(selector, f)
}

func defaultViewSelector(msg Message, o *config.Options) string {
	if c := msg.Client(); c != nil {
		if v := c.DefaultAttachmentView(); v != "" {
			return v
		}
	}
	if v := o.MaskFor(config.DefaultMask); v != "" {
		return v
	}
	return config.DefaultMask
}

// Present wraps the attachment in the view named by selector, or in its
// default view when selector is empty.
func (a *Attachment) Present(selector string) (View, error) {
	if selector == "" {
		selector = a.view
	}
	f, ok := a.views.Lookup(selector)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrViewNotFound, selector)
	}
	return f(a), nil
}

// SetViewSelector changes the default view. Unknown selectors are refused
// and the previous selector stays in place.
func (a *Attachment) SetViewSelector(selector string) error {
	if _, ok := a.views.Lookup(selector); !ok {
		return fmt.Errorf("%w: %q", ErrViewNotFound, selector)
	}
	a.view = selector
	return nil
}

func (a *Attachment) ViewSelector() string { return a.view }

// AttachmentView exposes the content in forms suited to inline display.
type AttachmentView struct {
	att *Attachment
}

func NewAttachmentView(a *Attachment) View {
	return &AttachmentView{att: a}
}

func (v *AttachmentView) Attachment() *Attachment { return v.att }

func (v *AttachmentView) ContentBase64() string {
	return base64.StdEncoding.EncodeToString(v.att.Content())
}

// ImageSrc returns the caller-provided img_src, or a data URI of the content.
func (v *AttachmentView) ImageSrc() string {
	if src := v.att.ImgSrc(); src != "" {
		return src
	}
	return "data:" + v.att.ContentType() + ";base64," + v.ContentBase64()
}

// SummaryView renders a one-line description.
type SummaryView struct {
	att *Attachment
}

func NewSummaryView(a *Attachment) View {
	return &SummaryView{att: a}
}

func (v *SummaryView) Attachment() *Attachment { return v.att }

func (v *SummaryView) String() string {
	a := v.att
	return fmt.Sprintf("%s (%s, %s, %d bytes) id=%s", a.Name(), a.ContentType(), a.Type(), a.Size(), a.ID())
}
