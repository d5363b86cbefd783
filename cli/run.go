package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/vx-labs/caucus/connection"
	"github.com/vx-labs/caucus/keys"
	"github.com/vx-labs/caucus/persona"
)

const defaultName = "anonymous"

// Run joins the conversation named by the join key in args, or starts a new
// one, and chats in it until the user leaves or the process is signaled.
func Run(v *viper.Viper, args []string) error {
	ctx, err := Bootstrap(v)
	if err != nil {
		return err
	}
	defer ctx.Close()
	logger := ctx.Logger
	if port := v.GetInt(FlagMetricsPort); port > 0 {
		ctx.ServeHTTPHealth(port)
	}

	c, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := ""
	if len(args) > 0 {
		input = args[0]
	}
	retriever, err := ctx.Retriever()
	if err != nil {
		return err
	}
	joinKey, err := ctx.ResolveJoinKey(c, input, retriever)
	if err != nil {
		return err
	}

	name := v.GetString(FlagName)
	if name == "" {
		name = defaultName
	}
	self, err := persona.New(keys.Generate(), name, persona.IconPerson, nil, time.Now())
	if err != nil {
		return err
	}
	container, err := ctx.OpenContainer(c, joinKey.ContainerID, self.ID)
	if err != nil {
		return err
	}
	opts := []connection.Option{
		connection.WithLogger(logger),
		connection.WithRegistry(ctx.Registry),
	}
	recorder, err := ctx.Activity()
	if err != nil {
		return err
	}
	if recorder != nil {
		opts = append(opts, connection.WithActivity(recorder, v.GetString(FlagEmail)))
	}
	conn := connection.New(container, self, opts...)
	if _, err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Disconnect()
	fmt.Printf("Share this join key to invite participants: %s\n", joinKey)

	chat := NewChat(conn, os.Stdout, logger)
	defer chat.Close()

	done := make(chan error, 1)
	go func() {
		done <- chat.Run()
	}()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sigc)
	select {
	case err := <-done:
		return err
	case <-sigc:
		logger.Info("received termination signal")
		return nil
	}
}
