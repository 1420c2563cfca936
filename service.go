package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"audiostream/core"
)

// program runs the server under a system service manager (systemd,
// launchd or the Windows SCM).
type program struct {
	mu   sync.Mutex
	app  *App
	done chan error
}

// Start implements service.Interface. It must not block.
func (p *program) Start(s service.Service) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	p.mu.Lock()
	p.app = app
	p.done = make(chan error, 1)
	p.mu.Unlock()

	go func() { p.done <- app.Run() }()
	return nil
}

// Stop implements service.Interface and waits for the shutdown sequence.
func (p *program) Stop(s service.Service) error {
	p.mu.Lock()
	app, done := p.app, p.done
	p.mu.Unlock()
	if app == nil {
		return nil
	}
	app.Stop()
	if err := <-done; err != nil && !isSignalExit(err) {
		return err
	}
	return nil
}

// serviceConfig describes the installed service. The service runs
// `audiostream service run` from the directory it was installed from so
// that .env is found.
func serviceConfig(workDir string) *service.Config {
	return &service.Config{
		Name:             "audiostream",
		DisplayName:      "audiostream",
		Description:      "Byte-range audio streaming server",
		Arguments:        []string{"service", "run"},
		WorkingDirectory: workDir,
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

func newService(workDir string) (service.Service, error) {
	s, err := service.New(&program{}, serviceConfig(workDir))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

func newServiceCmd() *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control audiostream as a system service",
	}
	cmd.PersistentFlags().StringVar(&workDir, "workdir", "", "working directory of the installed service")

	control := func(action string) *cobra.Command {
		return &cobra.Command{
			Use:   action,
			Short: action + " the system service",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newService(workDir)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		}
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(control(action))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newService(workDir)
			if err != nil {
				return err
			}
			status, err := s.Status()
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "service is not installed")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get service status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(status))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newService(workDir)
			if err != nil {
				return err
			}
			if err := s.Run(); err != nil {
				return &exitError{code: core.ExitCodeError, err: fmt.Errorf("service run failed: %w", err)}
			}
			return nil
		},
	})
	return cmd
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "service is running"
	case service.StatusStopped:
		return "service is stopped"
	default:
		return "service status unknown"
	}
}
