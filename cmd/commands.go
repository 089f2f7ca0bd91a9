package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taskcrdt/pkg/config"
	"taskcrdt/pkg/replica"
	"taskcrdt/pkg/storage"
	"taskcrdt/pkg/util/logging"
)

const (
	// replicaKey is the store key of the local replica's snapshot.
	replicaKey = "replica"
	// peerKeyPrefix prefixes the keys of the last snapshot merged from each peer.
	peerKeyPrefix = "peer-"
)

type app struct {
	configPath string
	storePath  string

	// store is open while an action runs
	store storage.SnapshotStore
}

// action runs against the loaded replica and reports whether it changed it.
type action func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "tasks",
		Short:        "A replicated task list that merges without conflicts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to the yaml config")
	root.PersistentFlags().StringVar(&a.storePath, "store-path", "", "override storage.path from the config")

	var undo bool
	completeCmd := &cobra.Command{
		Use:   "complete <task>",
		Short: "Mark a task as done (or not done with --undo)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
			return editTask(rep, args[0], func(id uuid.UUID) error { return rep.SetComplete(id, !undo) })
		}),
	}
	completeCmd.Flags().BoolVar(&undo, "undo", false, "mark the task as not done")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the tasks, oldest first",
			Args:  cobra.NoArgs,
			RunE:  a.run(listTasks),
		},
		&cobra.Command{
			Use:   "add <description...>",
			Short: "Add a task",
			Args:  cobra.MinimumNArgs(1),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				id := rep.AddTask(strings.Join(args, " "))
				fmt.Fprintln(out, id)
				return true, nil
			}),
		},
		&cobra.Command{
			Use:   "update <task> <description...>",
			Short: "Replace the description of a task",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				description := strings.Join(args[1:], " ")
				return editTask(rep, args[0], func(id uuid.UUID) error { return rep.UpdateDescription(id, description) })
			}),
		},
		completeCmd,
		&cobra.Command{
			Use:   "remove <task>",
			Short: "Remove a task on every replica, for good",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				return editTask(rep, args[0], rep.RemoveTask)
			}),
		},
		&cobra.Command{
			Use:   "tag <task> <tag...>",
			Short: "Add tags to a task",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				return editTask(rep, args[0], func(id uuid.UUID) error {
					for _, tag := range args[1:] {
						if err := rep.Tag(id, tag); err != nil {
							return err
						}
					}
					return nil
				})
			}),
		},
		&cobra.Command{
			Use:   "untag <task> <tag...>",
			Short: "Remove tags from a task",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				return editTask(rep, args[0], func(id uuid.UUID) error {
					for _, tag := range args[1:] {
						if err := rep.Untag(id, tag); err != nil {
							return err
						}
					}
					return nil
				})
			}),
		},
		&cobra.Command{
			Use:   "annotate <task> <key> <value...>",
			Short: "Set an annotation on a task",
			Args:  cobra.MinimumNArgs(3),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				value := strings.Join(args[2:], " ")
				return editTask(rep, args[0], func(id uuid.UUID) error { return rep.Annotate(id, args[1], value) })
			}),
		},
		&cobra.Command{
			Use:   "unannotate <task> <key>",
			Short: "Remove an annotation from a task",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(func(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
				return editTask(rep, args[0], func(id uuid.UUID) error { return rep.Unannotate(id, args[1]) })
			}),
		},
		&cobra.Command{
			Use:   "show <task>",
			Short: "Print every field of a task",
			Args:  cobra.ExactArgs(1),
			RunE:  a.run(showTask),
		},
		&cobra.Command{
			Use:   "merge <snapshot-file...>",
			Short: "Merge snapshots exported by other replicas",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.run(a.mergeSnapshots),
		},
		&cobra.Command{
			Use:   "peers",
			Short: "List the peers merged so far with the clock of their last snapshot",
			Args:  cobra.NoArgs,
			RunE:  a.run(a.listPeers),
		},
		&cobra.Command{
			Use:   "export [file]",
			Short: "Write the replica's snapshot to a file, or to stdout",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.run(exportSnapshot),
		},
	)
	return root
}

// run wraps fn with loading the replica before and saving it after, when fn
// changed it.
func (a *app) run(fn action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", a.configPath, err)
		}
		if a.storePath != "" {
			cfg.Storage.Path = a.storePath
		}
		logging.InitDefault(cfg.Node.ID, cfg.Log.Level)

		store, err := storage.Open(cfg.Storage)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Error("closing snapshot store", "error", err)
			}
		}()
		a.store = store
		defer func() { a.store = nil }()

		rep, err := loadReplica(ctx, store, cfg.Node.ID)
		if err != nil {
			return err
		}

		changed, err := fn(ctx, cmd.OutOrStdout(), rep, args)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		data, err := rep.Snapshot()
		if err != nil {
			return err
		}
		if err := store.Save(ctx, replicaKey, data); err != nil {
			return err
		}
		slog.Debug("replica saved", "command", cmd.Name(), "clock", rep.Clock().String())
		return nil
	}
}

func loadReplica(ctx context.Context, store storage.SnapshotStore, nodeID string) (*replica.Replica, error) {
	data, err := store.Load(ctx, replicaKey)
	if errors.Is(err, storage.ErrNoSnapshot) {
		slog.Info("starting a new replica")
		return replica.New(uuid.MustParse(nodeID)), nil
	}
	if err != nil {
		return nil, err
	}

	rep, err := replica.NewFromSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("restore replica: %w", err)
	}
	if rep.ID().String() != nodeID {
		slog.Warn("stored replica belongs to another node id, keeping the stored one",
			"configured", nodeID, "stored", rep.ID())
	}
	return rep, nil
}

func editTask(rep *replica.Replica, ref string, fn func(uuid.UUID) error) (bool, error) {
	id, err := rep.Resolve(ref)
	if err != nil {
		return false, err
	}
	if err := fn(id); err != nil {
		return false, err
	}
	return true, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func listTasks(_ context.Context, out io.Writer, rep *replica.Replica, _ []string) (bool, error) {
	entries, err := rep.List()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s\n", shortID(e.ID), e.Task)
	}
	return false, nil
}

func showTask(_ context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
	id, err := rep.Resolve(args[0])
	if err != nil {
		return false, err
	}
	task, err := rep.Task(id)
	if err != nil {
		return false, err
	}

	status := "open"
	if task.Complete.Value() {
		status = "done"
	}
	fmt.Fprintf(out, "id:          %s\n", id)
	fmt.Fprintf(out, "description: %s\n", task.Description.Value())
	fmt.Fprintf(out, "status:      %s\n", status)
	fmt.Fprintf(out, "added:       %s\n", task.Added.Value().Format(time.RFC3339))
	fmt.Fprintf(out, "tags:        %s\n", strings.Join(task.TagList(), ", "))

	var keys []string
	for k := range task.Annotations.All() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		fmt.Fprintln(out, "annotations:")
	}
	for _, k := range keys {
		v, _ := task.Annotation(k)
		fmt.Fprintf(out, "  %s: %s\n", k, v)
	}
	return false, nil
}

// mergeSnapshots merges every file into rep and keeps a copy of each under
// the key of the peer that exported it.
func (a *app) mergeSnapshots(ctx context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, err
		}
		if err := rep.MergeSnapshot(data); err != nil {
			return false, fmt.Errorf("merge %s: %w", path, err)
		}
		peer, err := replica.NewFromSnapshot(data)
		if err != nil {
			return false, fmt.Errorf("merge %s: %w", path, err)
		}
		if err := a.store.Save(ctx, peerKeyPrefix+peer.ID().String(), data); err != nil {
			return false, err
		}
		slog.Info("merged snapshot", "path", path, "peer", peer.ID())
	}
	entries, err := rep.List()
	if err != nil {
		return false, err
	}
	fmt.Fprintf(out, "%d tasks after merge\n", len(entries))
	return true, nil
}

func (a *app) listPeers(ctx context.Context, out io.Writer, _ *replica.Replica, _ []string) (bool, error) {
	keys, err := a.store.Keys(ctx)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, peerKeyPrefix) {
			continue
		}
		data, err := a.store.Load(ctx, key)
		if err != nil {
			return false, err
		}
		peer, err := replica.NewFromSnapshot(data)
		if err != nil {
			return false, fmt.Errorf("peer snapshot %s: %w", key, err)
		}
		fmt.Fprintf(out, "%s  %s\n", peer.ID(), peer.Clock())
	}
	return false, nil
}

func exportSnapshot(_ context.Context, out io.Writer, rep *replica.Replica, args []string) (bool, error) {
	data, err := rep.Snapshot()
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		_, err = fmt.Fprintln(out, string(data))
		return false, err
	}
	return false, os.WriteFile(args[0], data, 0o600)
}
