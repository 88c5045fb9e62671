package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caucehq/cauce/engine/agent"
	"github.com/caucehq/cauce/engine/controller"
	"github.com/caucehq/cauce/engine/job"
	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/llm"
	"github.com/caucehq/cauce/engine/metrics"
	"github.com/caucehq/cauce/engine/router"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/internal/profile"
	"github.com/caucehq/cauce/internal/version"
	"github.com/caucehq/cauce/server"
	"github.com/caucehq/cauce/store"
)

var (
	rootCmd = &cobra.Command{
		Use:   "cauce",
		Short: `A conversational turn orchestrator for WhatsApp-style business messaging. Routes each inbound message to the right agent lane and keeps the session state straight.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Only load .env for direct binary execution (not when running as systemd service)
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:        viper.GetString("mode"),
				Addr:        viper.GetString("addr"),
				Port:        viper.GetInt("port"),
				Driver:      viper.GetString("driver"),
				LanesConfig: viper.GetString("lanes"),
				Version:     version.GetCurrentVersion(viper.GetString("mode")),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				panic(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			kv, err := store.New(store.Config{
				Driver:        instanceProfile.Driver,
				RedisAddr:     instanceProfile.RedisAddr,
				RedisPassword: instanceProfile.RedisPassword,
				RedisDB:       instanceProfile.RedisDB,
			})
			if err != nil {
				slog.Error("failed to create session store", "error", err)
				return
			}

			lanes, err := lane.Load(instanceProfile.LanesConfig)
			if err != nil {
				slog.Error("failed to load lane config", "error", err)
				return
			}

			var classifier router.Classifier
			if instanceProfile.IsRouterEnabled() {
				client, err := llm.NewClient(llm.Config{
					Provider: instanceProfile.RouterProvider,
					Model:    instanceProfile.RouterModel,
					APIKey:   instanceProfile.RouterAPIKey,
					BaseURL:  instanceProfile.RouterBaseURL,
					Timeout:  time.Duration(instanceProfile.RouterTimeout) * time.Second,
				})
				if err != nil {
					slog.Error("failed to create router LLM client", "error", err)
					return
				}
				classifier = client
				slog.Info("intent router enabled",
					"provider", instanceProfile.RouterProvider,
					"model", instanceProfile.RouterModel,
				)
			} else {
				slog.Info("intent router disabled, every turn routes to the default lane")
			}

			registry, err := agent.NewRegistry(lanes, agent.BuiltinFactories())
			if err != nil {
				slog.Error("failed to build agent registry", "error", err)
				return
			}

			exporter := metrics.NewExporter(metrics.DefaultConfig())

			engine := controller.New(controller.Deps{
				Store:     kv,
				Router:    router.NewService(lanes, router.Config{Classifier: classifier, RPS: instanceProfile.RouterRPS}),
				Registry:  registry,
				Builder:   state.NewBuilder(lanes),
				Validator: state.NewValidator(lanes),
				Lanes:     lanes,
				Metrics:   exporter,
			})

			orchestrator := job.NewOrchestrator(kv, engine, nil)
			dispatcher := job.NewDispatcher(orchestrator, job.Config{
				Workers:   instanceProfile.Workers,
				QueueSize: instanceProfile.QueueSize,
				Metrics:   exporter,
			})
			go dispatcher.Start(ctx)

			s, err := server.NewServer(ctx, instanceProfile, kv, dispatcher, exporter)
			if err != nil {
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			// The default signal sent by the `kill` command is SIGTERM,
			// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				return
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer drainCancel()
				if err := dispatcher.Shutdown(drainCtx); err != nil {
					slog.Error("dispatcher drain incomplete", "error", err)
				}
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("driver", "", "session store driver (memory, redis)")
	rootCmd.PersistentFlags().String("lanes", "", "path to the lane config yaml, empty uses the embedded default")

	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("lanes", rootCmd.PersistentFlags().Lookup("lanes")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("cauce")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Cauce %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Session store driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
		fmt.Printf("Post messages at: http://localhost:%d/api/v1/tenants/{tenant_id}/messages\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
		fmt.Printf("Post messages at: http://%s:%d/api/v1/tenants/{tenant_id}/messages\n", profile.Addr, profile.Port)
	}

	fmt.Println()
	fmt.Printf("Source code: %s\n", "https://github.com/caucehq/cauce")
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	// Check if invoked by systemd (environment variables set by systemd)
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
