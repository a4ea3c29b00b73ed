package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kandev/taskboard/internal/board/models"
	boardservice "github.com/kandev/taskboard/internal/board/service"
	"github.com/kandev/taskboard/internal/persistence"
	"github.com/kandev/taskboard/internal/session"
	userservice "github.com/kandev/taskboard/internal/user/service"
)

type exportedBoard struct {
	Email      string           `yaml:"email"`
	OwnerID    string           `yaml:"owner_id"`
	ExportedAt time.Time        `yaml:"exported_at"`
	Columns    []exportedColumn `yaml:"columns"`
}

type exportedColumn struct {
	ID    string         `yaml:"id"`
	Title string         `yaml:"title"`
	Rank  string         `yaml:"rank"`
	Tasks []exportedTask `yaml:"tasks"`
}

type exportedTask struct {
	ID        string    `yaml:"id"`
	Content   string    `yaml:"content"`
	Rank      string    `yaml:"rank"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func exportCmd(configPath *string) *cobra.Command {
	var (
		email string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a user's board as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			repos, cleanup, err := persistence.Provide(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			ctx := cmd.Context()
			user, err := userservice.NewService(repos.Users, nil, log).GetUserByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("export %s: %w", email, err)
			}
			boards := boardservice.NewService(repos.Board, nil, session.NewMemoryStore(), boardservice.Config{}, log)
			board, err := boards.ExportBoard(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("export %s: %w", email, err)
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeBoardYAML(w, email, board, time.Now().UTC())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the board owner")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func toExport(email string, board models.Board, at time.Time) exportedBoard {
	out := exportedBoard{
		Email:      email,
		OwnerID:    board.OwnerID,
		ExportedAt: at,
		Columns:    make([]exportedColumn, 0, len(board.Columns)),
	}
	for _, col := range board.Columns {
		ec := exportedColumn{
			ID:    col.ID,
			Title: col.Title,
			Rank:  col.Rank,
			Tasks: make([]exportedTask, 0, len(col.Tasks)),
		}
		for _, t := range col.Tasks {
			ec.Tasks = append(ec.Tasks, exportedTask{
				ID:        t.ID,
				Content:   t.Content,
				Rank:      t.Rank,
				UpdatedAt: t.UpdatedAt,
			})
		}
		out.Columns = append(out.Columns, ec)
	}
	return out
}

func writeBoardYAML(w io.Writer, email string, board models.Board, at time.Time) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toExport(email, board, at)); err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	return enc.Close()
}
