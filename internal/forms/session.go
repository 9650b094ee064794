package forms

import (
	"fmt"
	"time"

	"appcc-workers/internal/common/logger"
)

// Notifier shows transient confirmations and errors to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// LogNotifier forwards notifications to a logger.
type LogNotifier struct {
	Logger logger.Logger
}

func (n LogNotifier) Success(msg string) { n.Logger.Info(msg, nil) }
func (n LogNotifier) Error(msg string)   { n.Logger.Warn(msg, nil) }

// Session owns the state of one form instance from creation until it is
// submitted or cancelled. It is not safe for concurrent use.
type Session struct {
	template  Template
	recordID  string
	structure *FormStructure
	values    Values
	errors    Errors

	signatureComplete bool
	readOnly          bool
	loading           bool
	submitted         bool
	closed            bool

	user            *User
	clock           func() time.Time
	location        *time.Location
	notifier        Notifier
	logger          logger.Logger
	defaultUserName string
	onCancel        func()
}

type Option func(*Session)

func WithUser(u *User) Option { return func(s *Session) { s.user = u } }

func WithReadOnly(readOnly bool) Option { return func(s *Session) { s.readOnly = readOnly } }

func WithLoading(loading bool) Option { return func(s *Session) { s.loading = loading } }

func WithClock(clock func() time.Time) Option { return func(s *Session) { s.clock = clock } }

// WithLocation sets the zone used for the default date and signature display.
func WithLocation(loc *time.Location) Option { return func(s *Session) { s.location = loc } }

func WithNotifier(n Notifier) Option { return func(s *Session) { s.notifier = n } }

func WithLogger(l logger.Logger) Option { return func(s *Session) { s.logger = l } }

func WithDefaultUserName(name string) Option {
	return func(s *Session) {
		if name != "" {
			s.defaultUserName = name
		}
	}
}

// WithOnCancel sets the collaborator invoked when a read-only form is submitted.
func WithOnCancel(fn func()) Option { return func(s *Session) { s.onCancel = fn } }

// NewSession parses the template structure and seeds the initial values.
// A structure that cannot be parsed returns *SchemaError.
func NewSession(tmpl Template, record *Record, opts ...Option) (*Session, error) {
	s := &Session{
		template:        tmpl,
		clock:           time.Now,
		location:        time.Local,
		notifier:        NopNotifier{},
		logger:          logger.NewNoOpLogger(),
		defaultUserName: DefaultUserName,
		errors:          Errors{},
	}
	for _, opt := range opts {
		opt(s)
	}

	structure, err := ParseStructure(tmpl.FormStructure)
	if err != nil {
		s.logger.Error("failed to parse form structure", map[string]interface{}{
			"templateId": tmpl.ID,
			"error":      err,
		})
		return nil, err
	}
	s.structure = structure

	if record != nil {
		s.recordID = record.ID
	}
	s.values, s.signatureComplete = InitialValues(s.user, record, s.now(), s.logger)
	return s, nil
}

func (s *Session) now() time.Time {
	return s.clock().In(s.location)
}

func (s *Session) Template() Template          { return s.template }
func (s *Session) RecordID() string            { return s.recordID }
func (s *Session) Structure() *FormStructure   { return s.structure }
func (s *Session) SignatureComplete() bool     { return s.signatureComplete }
func (s *Session) ReadOnly() bool              { return s.readOnly }
func (s *Session) Closed() bool                { return s.closed }
func (s *Session) Value(id string) (any, bool) { v, ok := s.values[id]; return v, ok }

// Values returns a copy of the current value map.
func (s *Session) Values() Values { return s.values.Clone() }

// Errors returns a copy of the current error map.
func (s *Session) Errors() Errors { return s.errors.Clone() }

// SetValue records user input for id and clears that field's error only.
// It does nothing on a read-only or closed form.
func (s *Session) SetValue(id string, v any) {
	if s.readOnly || s.closed {
		return
	}
	s.values[id] = v
	delete(s.errors, id)
}

// Sign marks the form as signed. It reports whether the flag changed; a
// second call, or a call on a read-only form, is a no-op.
func (s *Session) Sign() bool {
	if s.readOnly || s.closed || s.signatureComplete {
		return false
	}
	s.signatureComplete = true
	delete(s.errors, KeySignature)
	s.notifier.Success(MsgSigned)
	return true
}

// Validate runs a full pass and replaces the error map.
func (s *Session) Validate() Result {
	r := Validate(s.structure, s.values, s.signatureComplete, s.readOnly)
	s.errors = r.Errors.Clone()
	return r
}

// Submit validates the form and hands the payload to onSubmit. A read-only
// form is closed instead, without validation. onSubmit is called at most
// once per successful submission; if it fails the session may be submitted again.
func (s *Session) Submit(onSubmit func(Values) error) (Values, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.readOnly {
		s.Cancel(s.onCancel)
		return nil, nil
	}
	if s.submitted {
		return nil, ErrAlreadySubmitted
	}

	r := s.Validate()
	if !r.Valid {
		s.notifier.Error(MsgFormIncomplete)
		return nil, &ValidationFailedError{Errors: r.Errors}
	}

	payload := BuildSubmission(s.values, s.user, s.clock(), s.defaultUserName)
	s.submitted = true
	if onSubmit != nil {
		if err := onSubmit(payload.Clone()); err != nil {
			s.submitted = false
			return nil, fmt.Errorf("submit control: %w", err)
		}
	}
	return payload, nil
}

// Cancel discards the session state and invokes onCancel, if any.
func (s *Session) Cancel(onCancel func()) {
	if s.closed {
		return
	}
	s.closed = true
	s.values = Values{}
	s.errors = Errors{}
	if onCancel != nil {
		onCancel()
	}
}

// Render builds the view model for every section.
func (s *Session) Render() FormView {
	return RenderForm(s.structure, s.values, s.errors, RenderState{
		ReadOnly:          s.readOnly,
		Loading:           s.loading,
		SignatureComplete: s.signatureComplete,
		Location:          s.location,
	})
}
