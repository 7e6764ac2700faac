package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"otodo-go/internal/app"
	"otodo-go/internal/config"
	"otodo-go/internal/otodo"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an OtodoApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "add", "sync").
func newApp(command string) (*app.OtodoApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewOtodoApp(cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "otodo",
	Short: "Offline-first task tracker",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"], server)

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Server:   %s\n", server)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Server:   %s (%s)\n", cfg.Server.Type, cfg.Server.BaseURL)
		fmt.Printf("Store:    %s (%s)\n", cfg.Store.Type, cfg.Store.DataDir)
		if cfg.Vault.Type != "" {
			fmt.Printf("Vault:    %s\n", cfg.Vault.Type)
		}
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add TITLE",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("add")
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.AddTask(strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		fmt.Printf("Created %s  %s\n", task.ID, task.Title)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp("list")
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.ListTasks(all)
		if err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		today := time.Now()
		for _, t := range tasks {
			fmt.Println(formatTaskLine(&t, today))
		}

		pending, err := a.PendingCount()
		if err != nil {
			return err
		}
		if pending > 0 {
			fmt.Printf("\n%d change(s) pending sync\n", pending)
		}
		return nil
	},
}

// formatTaskLine renders one task as a list row.
func formatTaskLine(t *otodo.Task, today time.Time) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	star := " "
	if t.Starred {
		star = "*"
	}
	line := fmt.Sprintf("%s %s %-8s  %s  %s", box, star, shortID(t.ID), t.Title, priorityTag(t.Priority))
	if t.DueDate != "" {
		due := otodo.Due(t.DueDate, today)
		line += fmt.Sprintf("  (%s)", due.Label)
	}
	return strings.TrimRight(line, " ")
}

// shortID abbreviates long ids for list rows. Ids are opaque strings from
// whichever client created the task, so they can be arbitrarily short.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func priorityTag(p otodo.Priority) string {
	if p == otodo.PriorityNone {
		return ""
	}
	return "!" + string(p)
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("show")
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.GetTask(args[0])
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("no task with id %s", args[0])
		}

		fmt.Printf("ID:        %s\n", task.ID)
		fmt.Printf("Title:     %s\n", task.Title)
		fmt.Printf("Priority:  %s\n", task.Priority)
		fmt.Printf("Completed: %v\n", task.Completed)
		fmt.Printf("Starred:   %v\n", task.Starred)
		if task.StartDate != "" {
			fmt.Printf("Start:     %s\n", task.StartDate)
		}
		if task.DueDate != "" {
			due := otodo.Due(task.DueDate, time.Now())
			fmt.Printf("Due:       %s (%s)\n", task.DueDate, due.Label)
		}
		fmt.Printf("Updated:   %s\n", task.UpdatedAt.Format("2006-01-02 15:04:05"))
		if task.Description != "" {
			fmt.Printf("\n%s\n", task.Description)
		}
		return nil
	},
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("edit")
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		task, err := a.EditTask(args[0], func(t *otodo.Task) {
			if flags.Changed("title") {
				t.Title, _ = flags.GetString("title")
			}
			if flags.Changed("description") {
				t.Description, _ = flags.GetString("description")
			}
			if flags.Changed("priority") {
				p, _ := flags.GetString("priority")
				t.Priority = otodo.Priority(p)
			}
			if flags.Changed("start") {
				t.StartDate, _ = flags.GetString("start")
			}
			if flags.Changed("due") {
				t.DueDate, _ = flags.GetString("due")
			}
			if flags.Changed("star") {
				t.Starred, _ = flags.GetBool("star")
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("Saved %s  %s\n", task.ID, task.Title)
		return nil
	},
}

// done command
var doneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")

		a, err := newApp("done")
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.EditTask(args[0], func(t *otodo.Task) {
			t.Completed = !undo
		})
		if err != nil {
			return err
		}

		if undo {
			fmt.Printf("Reopened %s  %s\n", task.ID, task.Title)
		} else {
			fmt.Printf("Completed %s  %s\n", task.ID, task.Title)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteTask(args[0]); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}

		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize with the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("sync")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		if !a.Online(ctx) {
			return fmt.Errorf("server unreachable; changes remain queued")
		}

		tasks, err := a.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Printf("Synced. %d task(s) on server.\n", len(tasks))
		return nil
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show unsynchronized changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("pending")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.PendingCount()
		if err != nil {
			return err
		}

		fmt.Printf("%d change(s) pending sync\n", count)
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		a, err := newApp("login")
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := a.Login(context.Background(), args[0], string(pw))
		if err != nil {
			return err
		}

		fmt.Printf("Signed in as %s (%s)\n", session.User.Email, session.Mode)
		return nil
	},
}

// logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("logout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(); err != nil {
			return err
		}

		fmt.Println("Signed out.")
		return nil
	},
}

// whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("whoami")
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := a.CurrentSession()
		if err != nil {
			return err
		}
		if session == nil {
			fmt.Println("Not signed in.")
			return nil
		}

		fmt.Printf("%s (%s, since %s)\n",
			session.User.Email,
			session.Mode,
			session.IssuedAt.Format("2006-01-02 15:04:05"),
		)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a store snapshot to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backup")
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.Backup()
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Uploaded snapshot version %d\n", version)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore DEST",
	Short: "Download the latest snapshot from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restore(args[0]); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Snapshot written to %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("server", "", "Base URL of the sync server")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("all", "a", false, "Include completed tasks")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().String("description", "", "New description")
	editCmd.Flags().String("priority", "", "Priority: none, low, med, high")
	editCmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	editCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	editCmd.Flags().Bool("star", false, "Star or unstar the task")
	rootCmd.AddCommand(doneCmd)
	doneCmd.Flags().Bool("undo", false, "Reopen instead of completing")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
