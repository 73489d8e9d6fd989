package netconf

import (
	"context"
	"strconv"
	"strings"

	"github.com/damianoneill/nocexec/errs"
	"github.com/pkg/errors"
)

// Command formats for the JunOS <command> rpc.
const (
	FormatXML  = "xml"
	FormatText = "text"
)

// Get issues a get request with an optional subtree filter.
func (c *Client) Get(ctx context.Context, filter string) (*Reply, error) {
	return c.Call(ctx, &getOp{Filter: filterFor(filter)})
}

// GetConfig issues a get-config request on source with an optional subtree filter.
func (c *Client) GetConfig(ctx context.Context, source, filter string) (*Reply, error) {
	return c.Call(ctx, &getConfigOp{Source: datastore(source), Filter: filterFor(filter)})
}

// View runs a read-only query. A query starting with '<' is sent as the rpc body;
// anything else is run as an operational command with XML output. rpc-errors matching
// IgnoreErrors are logged and the reply returned without error.
func (c *Client) View(ctx context.Context, query string) (*Reply, error) {
	if isXML(query) {
		return c.ignoring(c.Call(ctx, query))
	}
	return c.Command(ctx, query, FormatXML)
}

// Command runs an operational CLI command, with output in format.
func (c *Client) Command(ctx context.Context, command, format string) (*Reply, error) {
	return c.ignoring(c.Call(ctx, &commandOp{Format: format, Command: command}))
}

// Edit loads configuration into the candidate datastore. XML is applied with edit-config;
// text is loaded as set statements. Once the edit is on the wire the candidate counts as
// having pending edits, even if the device rejects it: a partial load may have happened.
func (c *Client) Edit(ctx context.Context, config string) (*Reply, error) {
	var body Request
	if isXML(config) {
		if !c.HasCapability(CapCandidate) {
			return nil, errors.Wrap(errs.ErrNotSupported, "edit-config requires the candidate capability")
		}
		body = &editConfigOp{Target: datastore(Candidate), Config: &configBody{Payload: NewPayload(config)}}
	} else {
		body = &loadConfigurationOp{Action: "set", Format: FormatText, Set: config}
	}
	ex, err := c.Send(body)
	if err != nil {
		return nil, err
	}
	c.pending = true
	return c.ignoring(c.await(ctx, ex))
}

// Validate checks the candidate configuration. It requires pending edits.
func (c *Client) Validate(ctx context.Context) error {
	if !c.pending {
		return &errs.StateError{Op: "validate", State: "no pending candidate edits"}
	}
	if !c.HasCapability(CapValidate10) && !c.HasCapability(CapValidate11) {
		return errors.Wrap(errs.ErrNotSupported, "validate requires the validate capability")
	}
	reply, err := c.Call(ctx, &validateOp{Source: datastore(Candidate)})
	var re *ReplyError
	if errors.As(err, &re) {
		return &errs.ValidationError{Reply: reply.String(), Errors: re.errorList()}
	}
	return err
}

// Compare returns the difference between the candidate and rollback 0. With no pending
// edits it returns changed=false without contacting the device.
func (c *Client) Compare(ctx context.Context) (diff string, changed bool, err error) {
	if !c.pending {
		return "", false, nil
	}
	reply, err := c.Call(ctx, &getConfigurationOp{Compare: "rollback", Rollback: strconv.Itoa(0), Format: FormatText})
	if err != nil {
		return "", false, err
	}
	if out := reply.FindElement(".//configuration-information/configuration-output"); out != nil {
		diff = strings.TrimSpace(out.Text())
	}
	return diff, true, nil
}

// Commit makes the candidate configuration running. A refused commit leaves the
// pending edits in place.
func (c *Client) Commit(ctx context.Context) error {
	if !c.HasCapability(CapCandidate) {
		return errors.Wrap(errs.ErrNotSupported, "commit requires the candidate capability")
	}
	reply, err := c.Call(ctx, &commitOp{})
	var re *ReplyError
	if errors.As(err, &re) {
		return &errs.CommitError{Reply: reply.String(), Errors: re.errorList()}
	}
	if err != nil {
		return err
	}
	c.pending = false
	return nil
}

// Discard reverts the candidate configuration to the running configuration.
func (c *Client) Discard(ctx context.Context) error {
	if !c.HasCapability(CapCandidate) {
		return errors.Wrap(errs.ErrNotSupported, "discard-changes requires the candidate capability")
	}
	if _, err := c.Call(ctx, &discardOp{}); err != nil {
		return err
	}
	c.pending = false
	return nil
}

// Lock takes the candidate datastore lock. Locking an already locked candidate is a no-op.
func (c *Client) Lock(ctx context.Context) error {
	if c.locked {
		return nil
	}
	if !c.HasCapability(CapCandidate) {
		return errors.Wrap(errs.ErrNotSupported, "lock requires the candidate capability")
	}
	if _, err := c.Call(ctx, &lockOp{Target: datastore(Candidate)}); err != nil {
		return errors.Wrap(err, "configuration lock error")
	}
	c.locked = true
	return nil
}

// Unlock releases the candidate datastore lock. Unlocking when not locked is a no-op.
func (c *Client) Unlock(ctx context.Context) error {
	if !c.locked {
		return nil
	}
	if _, err := c.Call(ctx, &unlockOp{Target: datastore(Candidate)}); err != nil {
		return errors.Wrap(err, "configuration unlock error")
	}
	c.locked = false
	return nil
}

// CloseSession asks the server to end the session.
func (c *Client) CloseSession(ctx context.Context) error {
	_, err := c.Call(ctx, &closeSessionOp{})
	return err
}

// HasPendingEdits reports whether edits were made since the last commit or discard.
func (c *Client) HasPendingEdits() bool {
	return c.pending
}

// Locked reports whether this client holds the candidate lock.
func (c *Client) Locked() bool {
	return c.locked
}

// ignoring clears a *ReplyError whose rpc-errors all match IgnoreErrors.
func (c *Client) ignoring(reply *Reply, err error) (*Reply, error) {
	var re *ReplyError
	if !errors.As(err, &re) || len(c.cfg.IgnoreErrors) == 0 {
		return reply, err
	}
	for _, e := range re.Errors {
		if !c.ignorable(e.Message) {
			return reply, err
		}
	}
	c.log.WithError(err).Info("ignoring rpc-error")
	return reply, nil
}

func (c *Client) ignorable(msg string) bool {
	for _, fragment := range c.cfg.IgnoreErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func isXML(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "<")
}
