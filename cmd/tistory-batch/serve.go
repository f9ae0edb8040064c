package tistorybatch

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/metrics"
	"github.com/temirov/tistory-batch/internal/server"
)

func newServeCommand() *cobra.Command {
	var addr string
	command := &cobra.Command{
		Use:   serveCommandUse,
		Short: serveCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			environment, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer environment.close()

			listenAddr := environment.root.Server.Addr
			if strings.TrimSpace(addr) != "" {
				listenAddr = addr
			}
			return runServeCommand(cmd, environment, listenAddr)
		},
	}
	command.Flags().StringVar(&addr, addrFlagName, "", addrFlagUsage)
	return command
}

func runServeCommand(command *cobra.Command, environment session, addr string) error {
	defaults, defaultsErr := generationDefaults(environment)
	if defaultsErr != nil {
		return defaultsErr
	}
	if !strings.EqualFold(environment.root.Common.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	orchestrator := batch.NewOrchestrator(batch.WithDelay(environment.root.Batch.Delay()), batch.WithLogger(environment.logger))
	recorder := metrics.NewRecorder()
	defer orchestrator.Subscribe(recorder.Observe)()

	httpServer := server.New(server.Dependencies{
		Orchestrator:      orchestrator,
		Credentials:       environment.credentials,
		APIKeyEnvironment: environment.apiKeyEnvironment(),
		LookupEnvironment: environment.lookupEnv,
		NewGenerator:      environment.generatorFactory(),
		Defaults:          defaults,
		Recorder:          recorder,
		Logger:            environment.logger,
	})
	defer httpServer.Close()

	ctx, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := httpServer.Run(ctx, addr); err != nil {
		return fmt.Errorf(serveErrorFormat, err)
	}
	return nil
}

func generationDefaults(environment session) (server.Defaults, error) {
	generation := environment.root.Generation
	category, categoryErr := content.ParseCategory(generation.Category)
	if categoryErr != nil {
		return server.Defaults{}, categoryErr
	}
	tone, toneErr := content.ParseTone(generation.Tone)
	if toneErr != nil {
		return server.Defaults{}, toneErr
	}
	return server.Defaults{
		Keywords: strings.TrimSpace(generation.Keywords),
		Category: category,
		Tone:     tone,
		Model:    strings.TrimSpace(generation.Model),
		Limit:    environment.root.Batch.TopicLimit(),
	}, nil
}
