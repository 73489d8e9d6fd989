package testserver

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// Reply is the scripted response to one command line.
type Reply struct {
	// Output is written verbatim after the echoed command.
	Output string
	// Prompt, when set, replaces the current prompt.
	Prompt string
	// NoPrompt suppresses the prompt after the output.
	NoPrompt bool
	// Close ends the conversation after the output.
	Close bool
}

// Login describes a username/password exchange performed before the shell starts.
type Login struct {
	Username string
	Password string
	// Failure is written when the credentials are rejected; the channel is then closed.
	Failure string
}

// ShellHandler emulates a line oriented device CLI.
type ShellHandler struct {
	Banner string
	Prompt string
	// Echo repeats each received line back, as a device without pty echo suppression would.
	Echo  bool
	Login *Login
	// Commands maps a command line to its reply.
	Commands map[string]Reply
	// Unknown produces the reply for commands missing from Commands.
	Unknown func(cmd string) Reply

	mu       sync.Mutex
	received []string
}

// Received returns the command lines received so far.
func (h *ShellHandler) Received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.received...)
}

// Handle services a single CLI conversation.
func (h *ShellHandler) Handle(ch io.ReadWriteCloser) {
	r := bufio.NewReader(ch)
	prompt := h.Prompt

	if h.Login != nil && !h.login(r, ch) {
		return
	}

	_, _ = io.WriteString(ch, h.Banner+prompt)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		h.mu.Lock()
		h.received = append(h.received, cmd)
		h.mu.Unlock()

		if h.Echo {
			_, _ = io.WriteString(ch, cmd+"\r\n")
		}
		reply := h.reply(cmd)
		_, _ = io.WriteString(ch, reply.Output)
		if reply.Close {
			return
		}
		if reply.Prompt != "" {
			prompt = reply.Prompt
		}
		if !reply.NoPrompt {
			_, _ = io.WriteString(ch, prompt)
		}
	}
}

func (h *ShellHandler) reply(cmd string) Reply {
	if reply, ok := h.Commands[cmd]; ok {
		return reply
	}
	if h.Unknown != nil {
		return h.Unknown(cmd)
	}
	if cmd == "" {
		return Reply{}
	}
	return Reply{Output: "% Unknown command\r\n"}
}

func (h *ShellHandler) login(r *bufio.Reader, w io.Writer) bool {
	_, _ = io.WriteString(w, "\r\nUser Access Verification\r\n\r\nUsername: ")
	user, err := r.ReadString('\n')
	if err != nil {
		return false
	}
	_, _ = io.WriteString(w, "Password: ")
	pass, err := r.ReadString('\n')
	if err != nil {
		return false
	}
	if strings.TrimRight(user, "\r\n") == h.Login.Username && strings.TrimRight(pass, "\r\n") == h.Login.Password {
		_, _ = io.WriteString(w, "\r\n")
		return true
	}
	failure := h.Login.Failure
	if failure == "" {
		failure = "% Authentication failed\r\n"
	}
	_, _ = io.WriteString(w, "\r\n"+failure)
	return false
}
