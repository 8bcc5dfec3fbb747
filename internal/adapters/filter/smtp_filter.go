package filter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// AnalysisErrorHeader is stamped on messages whose analysis was cut short
const AnalysisErrorHeader = "X-Email-Analysis-Error"

// EmailRecorder counts processed messages
type EmailRecorder interface {
	RecordEmail(status, priority string)
}

// HeaderNames are the headers the SMTP filter writes
type HeaderNames struct {
	Priority    string
	Urgency     string
	Risk        string
	SenderCount string
}

// SMTPFilter is an SMTP content filter: the MTA hands every message to it,
// the pipeline analyses it, and the message is relayed back with the
// analysis stamped into X-Email-* headers
type SMTPFilter struct {
	pipeline        *core.Pipeline
	recorder        EmailRecorder
	logger          *zap.Logger
	listenAddr      string
	domain          string
	server          *smtp.Server
	headers         HeaderNames
	analysisTimeout time.Duration
	relayAddr       string
	relayPort       int
	relayEnabled    bool
}

// NewSMTPFilter creates a new SMTP content filter
func NewSMTPFilter(
	pipeline *core.Pipeline,
	recorder EmailRecorder,
	logger *zap.Logger,
	listenAddr string,
	domain string,
	headers HeaderNames,
	analysisTimeout time.Duration,
	relayAddr string,
	relayPort int,
	relayEnabled bool,
) *SMTPFilter {
	if domain == "" {
		domain = "localhost"
	}
	return &SMTPFilter{
		pipeline:        pipeline,
		recorder:        recorder,
		logger:          logger,
		listenAddr:      listenAddr,
		domain:          domain,
		headers:         headers,
		analysisTimeout: analysisTimeout,
		relayAddr:       relayAddr,
		relayPort:       relayPort,
		relayEnabled:    relayEnabled,
	}
}

// Start starts the SMTP listener in the background
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = f.domain
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}

	f.logger.Info("SMTP filter started", zap.String("address", ln.Addr().String()))

	go func() {
		if err := f.server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail runs the pipeline on a raw message without relaying it
func (f *SMTPFilter) ProcessEmail(ctx context.Context, rawEmail string) (*core.PipelineState, error) {
	return f.pipeline.Run(ctx, rawEmail)
}

// annotate runs the pipeline and returns the message with analysis headers
// prepended. Headers of the same name already present in the message are
// dropped so senders cannot forge them.
func (f *SMTPFilter) annotate(ctx context.Context, raw []byte) ([]byte, *core.PipelineState) {
	ctx, cancel := context.WithTimeout(ctx, f.analysisTimeout)
	defer cancel()

	st, err := f.pipeline.Run(ctx, string(raw))

	var out bytes.Buffer
	if err != nil {
		f.logger.Error("Email analysis interrupted", zap.Error(err))
		if f.recorder != nil {
			f.recorder.RecordEmail("failed", "")
		}
		fmt.Fprintf(&out, "%s: %s\r\n", AnalysisErrorHeader, err.Error())
	} else {
		if f.recorder != nil {
			f.recorder.RecordEmail("success", string(st.Priority))
		}
		f.writeHeader(&out, f.headers.Priority, string(st.Priority))
		f.writeHeader(&out, f.headers.Urgency, string(st.UrgencyLevel))
		f.writeHeader(&out, f.headers.Risk, string(st.RiskLevel))
		f.writeHeader(&out, f.headers.SenderCount, strconv.Itoa(st.SenderHistory.Count))
	}

	out.Write(stripHeaders(raw, f.headerNames()))
	return out.Bytes(), st
}

func (f *SMTPFilter) writeHeader(w io.Writer, name, value string) {
	if name == "" {
		return
	}
	fmt.Fprintf(w, "%s: %s\r\n", name, value)
}

func (f *SMTPFilter) headerNames() []string {
	names := []string{AnalysisErrorHeader}
	for _, n := range []string{f.headers.Priority, f.headers.Urgency, f.headers.Risk, f.headers.SenderCount} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// relay sends the annotated message back to the MTA
func (f *SMTPFilter) relay(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.relayAddr, strconv.Itoa(f.relayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay %s: %w", addr, err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message has already been accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// stripHeaders removes the named header fields, including folded
// continuation lines, from the header block of raw. The body is untouched.
func stripHeaders(raw []byte, names []string) []byte {
	headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	sepLen := 4
	if lf := bytes.Index(raw, []byte("\n\n")); lf >= 0 && (headerEnd < 0 || lf < headerEnd) {
		headerEnd, sepLen = lf, 2
	}
	if headerEnd < 0 {
		return raw
	}

	var out bytes.Buffer
	skipping := false
	scanner := bufio.NewScanner(bytes.NewReader(raw[:headerEnd+sepLen/2]))
	scanner.Buffer(make([]byte, 0, 64*1024), len(raw)+1)
	scanner.Split(scanLinesKeepEOL)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if !skipping {
				out.Write(line)
			}
			continue
		}
		skipping = false
		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			name := strings.TrimSpace(string(line[:colon]))
			for _, n := range names {
				if strings.EqualFold(name, n) {
					skipping = true
					break
				}
			}
		}
		if !skipping {
			out.Write(line)
		}
	}

	out.Write(raw[headerEnd+sepLen/2:])
	return out.Bytes()
}

// scanLinesKeepEOL is bufio.ScanLines without stripping the line ending
func scanLinesKeepEOL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyses the message and relays it. Analysis never rejects mail:
// an interrupted run is stamped with an error header and still delivered.
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	annotated, st := s.filter.annotate(context.Background(), raw)

	if s.filter.relayEnabled {
		if err := s.filter.relay(s.sender, s.recipients, annotated); err != nil {
			s.filter.logger.Error("Failed to relay email",
				zap.Error(err),
				zap.String("envelope_from", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Relay disabled, analysed message is dropped after processing")
	}

	s.filter.logger.Info("Processed email",
		zap.String("envelope_from", s.sender),
		zap.String("sender", st.Sender),
		zap.String("priority", string(st.Priority)),
		zap.String("risk", string(st.RiskLevel)),
		zap.Int("recipients", len(s.recipients)))

	return nil
}

// Logout ends the session
func (s *smtpSession) Logout() error {
	return nil
}
