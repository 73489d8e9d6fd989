package driver

import (
	"context"
	"testing"
	"time"

	"github.com/damianoneill/nocexec/driver/mocks"
	"github.com/damianoneill/nocexec/errs"
	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/session"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	assert "github.com/stretchr/testify/require"
)

// waitFor matches an Execute wait list holding the one pattern rendered as want.
type waitFor string

func (w waitFor) Matches(x interface{}) bool {
	wait, ok := x.([]expect.Pattern)
	return ok && len(wait) == 1 && wait[0].String() == string(w)
}

func (w waitFor) String() string { return "waits for " + string(w) }

func connectedIOS(t *testing.T, privileged bool, opts ...Option) (*IOS, *mocks.MockShell) {
	ctrl := gomock.NewController(t)
	shell := mocks.NewMockShell(ctrl)

	index := 0
	if privileged {
		index = 1
	}
	shell.EXPECT().
		Execute(gomock.Any(), "terminal length 0", expect.DefaultShellPrompts, time.Duration(0)).
		Return(&expect.Result{Lines: []string{"router"}, Index: index}, nil)

	opts = append(opts, WithShellOpener(func(context.Context, *session.Config) (Shell, error) { return shell, nil }))
	d, err := NewIOS(&session.Config{Host: "10.0.0.1"}, opts...)
	assert.NoError(t, err)
	assert.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, "router", d.Hostname())
	return d, shell
}

func TestIOSView(t *testing.T) {
	d, shell := connectedIOS(t, true)

	shell.EXPECT().
		Execute(gomock.Any(), "show system mtu", waitFor(`/router#\s*$/`), time.Duration(0)).
		Return(&expect.Result{Lines: []string{"", "System MTU size is 1500 bytes"}}, nil)

	lines, err := d.View(context.Background(), "show system mtu")
	assert.NoError(t, err)
	assert.Equal(t, []string{"", "System MTU size is 1500 bytes"}, lines)
}

func TestIOSViewUsesContextDeadline(t *testing.T) {
	d, shell := connectedIOS(t, true)

	shell.EXPECT().
		Execute(gomock.Any(), "show mac address-table", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ []expect.Pattern, timeout time.Duration) (*expect.Result, error) {
			assert.True(t, timeout > 50*time.Second && timeout <= time.Minute, "timeout %s", timeout)
			return &expect.Result{}, nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err := d.View(ctx, "show mac address-table")
	assert.NoError(t, err)
}

func TestIOSCommandRejected(t *testing.T) {
	d, shell := connectedIOS(t, true)

	output := []string{"                ^", "% Invalid input detected at '^' marker."}
	shell.EXPECT().
		Execute(gomock.Any(), "shw ver", gomock.Any(), gomock.Any()).
		Return(&expect.Result{Lines: output}, nil)

	lines, err := d.View(context.Background(), "shw ver")
	var ce *CommandError
	assert.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, output, ce.Output)
	assert.Equal(t, output, lines)
}

func TestIOSTimeoutIsCommandError(t *testing.T) {
	d, shell := connectedIOS(t, true)

	timeout := &errs.TimeoutError{Op: "expect", Timeout: time.Second, Partial: []string{"Building configuration..."}}
	shell.EXPECT().
		Execute(gomock.Any(), "show running-config", gomock.Any(), gomock.Any()).
		Return(nil, timeout)

	_, err := d.View(context.Background(), "show running-config")
	var te *errs.TimeoutError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, []string{"Building configuration..."}, errs.PartialOutput(err))
}

func TestIOSEditEntersAndLeavesConfigMode(t *testing.T) {
	d, shell := connectedIOS(t, true)

	gomock.InOrder(
		shell.EXPECT().
			Execute(gomock.Any(), "configure terminal", waitFor(`/router\(config[^)]*\)#\s*$/`), gomock.Any()).
			Return(&expect.Result{Lines: []string{"Enter configuration commands, one per line.  End with CNTL/Z."}}, nil),
		shell.EXPECT().
			Execute(gomock.Any(), "interface Gi0/1", waitFor(`/router\(config[^)]*\)#\s*$/`), gomock.Any()).
			Return(&expect.Result{}, nil),
		shell.EXPECT().
			Execute(gomock.Any(), "description uplink", gomock.Any(), gomock.Any()).
			Return(&expect.Result{}, nil),
		shell.EXPECT().
			Execute(gomock.Any(), "end", waitFor(`/router#\s*$/`), gomock.Any()).
			Return(&expect.Result{}, nil),
		shell.EXPECT().
			Execute(gomock.Any(), "show interfaces description", gomock.Any(), gomock.Any()).
			Return(&expect.Result{Lines: []string{"Gi0/1 up up uplink"}}, nil),
	)

	_, err := d.Edit(context.Background(), "interface Gi0/1")
	assert.NoError(t, err)
	_, err = d.Edit(context.Background(), "description uplink")
	assert.NoError(t, err)

	lines, err := d.View(context.Background(), "show interfaces description")
	assert.NoError(t, err)
	assert.Equal(t, []string{"Gi0/1 up up uplink"}, lines)
}

func TestIOSEnableWithSecret(t *testing.T) {
	d, shell := connectedIOS(t, false, WithEnableSecret("s3cret"))

	gomock.InOrder(
		shell.EXPECT().
			Execute(gomock.Any(), "enable", gomock.Any(), gomock.Any()).
			Return(&expect.Result{Index: 1, Match: "Password: "}, nil),
		shell.EXPECT().
			ExecuteSecret(gomock.Any(), "s3cret", gomock.Any(), gomock.Any()).
			Return(&expect.Result{Index: 0, Match: "router#"}, nil),
		shell.EXPECT().
			Execute(gomock.Any(), "configure terminal", gomock.Any(), gomock.Any()).
			Return(&expect.Result{}, nil),
		shell.EXPECT().
			Execute(gomock.Any(), "hostname core1", gomock.Any(), gomock.Any()).
			Return(&expect.Result{}, nil),
	)

	_, err := d.Edit(context.Background(), "hostname core1")
	assert.NoError(t, err)
	assert.True(t, d.privileged)
}

func TestIOSEnableWithoutSecret(t *testing.T) {
	d, shell := connectedIOS(t, false)

	shell.EXPECT().
		Execute(gomock.Any(), "enable", gomock.Any(), gomock.Any()).
		Return(&expect.Result{Index: 1, Match: "Password: "}, nil)

	_, err := d.Edit(context.Background(), "hostname core1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "can not enter configuration mode")
	assert.False(t, d.configMode)
}

func TestIOSSave(t *testing.T) {
	d, shell := connectedIOS(t, true)

	shell.EXPECT().
		Execute(gomock.Any(), "write memory", waitFor(`/\[OK\][\s\S]*?router#\s*$/`), gomock.Any()).
		Return(&expect.Result{Lines: []string{"Building configuration..."}}, nil)

	assert.NoError(t, d.Save(context.Background()))
}

func TestIOSCloseLeavesConfigMode(t *testing.T) {
	d, shell := connectedIOS(t, true)

	gomock.InOrder(
		shell.EXPECT().Execute(gomock.Any(), "configure terminal", gomock.Any(), gomock.Any()).Return(&expect.Result{}, nil),
		shell.EXPECT().Execute(gomock.Any(), "no ip domain-lookup", gomock.Any(), gomock.Any()).Return(&expect.Result{}, nil),
		shell.EXPECT().Execute(gomock.Any(), "end", gomock.Any(), gomock.Any()).Return(&expect.Result{}, nil),
		shell.EXPECT().Close().Return(nil),
	)

	_, err := d.Edit(context.Background(), "no ip domain-lookup")
	assert.NoError(t, err)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestIOSConnectFailure(t *testing.T) {
	refused := &errs.ConnectionError{Target: "10.0.0.1:22", Err: errors.New("connection refused")}
	d, err := NewIOS(&session.Config{Host: "10.0.0.1"}, WithShellOpener(func(context.Context, *session.Config) (Shell, error) {
		return nil, refused
	}))
	assert.NoError(t, err)

	err = d.Connect(context.Background())
	var ce *errs.ConnectionError
	assert.True(t, errors.As(err, &ce))
	assert.NoError(t, d.Close())
}
