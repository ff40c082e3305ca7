package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Span times one stage of a backtest run
type Span struct {
	Name       string `json:"name"`
	startTs    time.Time
	subProfile *Profile

	SubSpans []*Span `json:"subSpans,omitempty"`
	Elapsed  *int64  `json:"elapsed"`
}

type profileContextKey struct{}

var ContextProfileKey = profileContextKey{}

// GetProfile returns the profile stored in ctx. a throwaway profile is
// returned when there isn't one so callers never need to check
func GetProfile(ctx context.Context) (profile *Profile, endProfile func()) {
	profile, ok := ctx.Value(ContextProfileKey).(*Profile)
	if !ok || profile == nil {
		profile, _ = NewProfile()
	}
	return profile, profile.End
}

func ContextWithProfile(ctx context.Context, profile *Profile) context.Context {
	return context.WithValue(ctx, ContextProfileKey, profile)
}

// Profile is simply a list of spans
type Profile struct {
	Spans   []*Span `json:"spans"`
	startTs time.Time
	TotalMs *int64 `json:"totalMs"`
}

func (p *Profile) End() {
	t := time.Since(p.startTs).Milliseconds()
	if p.TotalMs == nil {
		p.TotalMs = &t
	}
}

func (s *Span) End() {
	if s.Elapsed == nil {
		t := time.Since(s.startTs).Milliseconds()
		s.Elapsed = &t
	}
	if s.subProfile != nil {
		s.SubSpans = s.subProfile.Spans
	}
}

func NewProfile() (newProfile *Profile, endNewProfile func()) {
	newProfile = &Profile{
		Spans:   []*Span{},
		startTs: time.Now(),
	}

	return newProfile, newProfile.End
}

func NewSpan(name string) (*Span, func()) {
	newSpan := &Span{
		Name:    name,
		startTs: time.Now(),
	}
	return newSpan, newSpan.End
}

// not thread safe, strategies running in parallel each get a sub profile
func (p *Profile) AddSpan(s *Span) {
	p.Spans = append(p.Spans, s)
}

// StartNewSpan ends the last span and begins a new one
// not thread safe
func (p *Profile) StartNewSpan(name string) (newSpan *Span, endSpan func()) {
	newSpan, endSpan = NewSpan(name)
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	p.Spans = append(p.Spans, newSpan)
	return newSpan, endSpan
}

func (s *Span) NewSubProfile() (*Profile, func()) {
	if s.subProfile != nil {
		panic("attempting to override existing subprofile")
	}
	newProfile, end := NewProfile()
	s.subProfile = newProfile
	return newProfile, end
}

func (p *Profile) ToJsonBytes() ([]byte, error) {
	bytes, err := json.Marshal(p.Spans)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

func NewCtxWithSubProfile(ctx context.Context, parentSpan *Span) context.Context {
	newProfile, _ := parentSpan.NewSubProfile()
	return ContextWithProfile(ctx, newProfile)
}
