package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wirechat-client: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr string
		user string
	)

	cmd := &cobra.Command{
		Use:           "wirechat-client",
		Short:         "Terminal client for the wirechat TCP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, addr, user, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:6000", "server address")
	cmd.Flags().StringVarP(&user, "user", "u", "", "username")
	_ = cmd.MarkFlagRequired("user")
	cmd.SetContext(context.Background())
	return cmd
}

func run(ctx context.Context, addr, user string, in io.Reader, out io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	framer := proto.NewFramer(0)
	if err := framer.WriteFrame(conn, []byte(user)); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Fprintf(out, "Connected to %s as %s\n", addr, user)
	fmt.Fprintln(out, "Commands: /people, /private <user> <text>, /disconnect")

	readErr := make(chan error, 1)
	go func() {
		readErr <- readLoop(conn, framer, out)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "disconnected")
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				line = "/disconnect"
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := framer.WriteFrame(conn, []byte(line)); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if !ok {
				// wait for the server to close
				return drain(readErr, out)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func drain(readErr <-chan error, out io.Writer) error {
	select {
	case err := <-readErr:
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "disconnected")
			return nil
		}
		return err
	case <-time.After(5 * time.Second):
		return nil
	}
}

func readLoop(conn net.Conn, framer proto.Framer, out io.Writer) error {
	for {
		payload, err := framer.ReadFrame(conn)
		if err != nil {
			return err
		}
		line, err := render(payload)
		if err != nil {
			return err
		}
		if line != "" {
			fmt.Fprintln(out, line)
		}
	}
}

// render turns one server frame into a plain text line.
func render(payload []byte) (string, error) {
	var frame struct {
		Type  string          `json:"type"`
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
		Error *proto.Error    `json:"error"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}

	if frame.Type == proto.OutboundTypeError && frame.Error != nil {
		return fmt.Sprintf("! %s: %s", frame.Error.Code, frame.Error.Msg), nil
	}

	stamp := func(ts int64) string { return time.Unix(ts, 0).Format("2006-01-02 15:04") }

	switch frame.Event {
	case proto.EventWelcome:
		var d proto.EventWelcomeData
		_ = json.Unmarshal(frame.Data, &d)
		return fmt.Sprintf("[%s] connected to server with username: %s", stamp(d.JoinedAt), d.User), nil
	case proto.EventHistory:
		var d proto.EventHistoryData
		_ = json.Unmarshal(frame.Data, &d)
		return fmt.Sprintf("-- %d earlier messages --", d.Count), nil
	case proto.EventMessage:
		var d proto.EventMessageData
		_ = json.Unmarshal(frame.Data, &d)
		return fmt.Sprintf("[%s] %s: %s", stamp(d.TS), d.User, d.Text), nil
	case proto.EventPrivate:
		var d proto.EventMessageData
		_ = json.Unmarshal(frame.Data, &d)
		return fmt.Sprintf("[%s] (private) %s: %s", stamp(d.TS), d.User, d.Text), nil
	case proto.EventPrivateSent:
		var d proto.EventMessageData
		_ = json.Unmarshal(frame.Data, &d)
		return fmt.Sprintf("[%s] (private to %s) %s", stamp(d.TS), d.To, d.Text), nil
	case proto.EventPeople:
		var d proto.EventPeopleData
		_ = json.Unmarshal(frame.Data, &d)
		names := make([]string, 0, len(d.People))
		for _, p := range d.People {
			names = append(names, fmt.Sprintf("%s (since %s)", p.User, stamp(p.JoinedAt)))
		}
		return fmt.Sprintf("online (%d): %s", len(names), strings.Join(names, ", ")), nil
	case proto.EventUserJoined, proto.EventUserLeft:
		var d proto.EventPresence
		_ = json.Unmarshal(frame.Data, &d)
		verb := "joined"
		if frame.Event == proto.EventUserLeft {
			verb = "left"
		}
		return fmt.Sprintf("[%s] * %s %s", stamp(d.TS), d.User, verb), nil
	default:
		return "", nil
	}
}
