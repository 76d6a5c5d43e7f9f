package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mind-engage/examportal/internal/config"
	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/profile"
	syncx "github.com/mind-engage/examportal/internal/sync"
)

func newCreateAdminCmd(env func() config.Config) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			dbh, err := openDB(cmd.Context(), env())
			if err != nil {
				return err
			}
			defer dbh.Close()
			u, err := profile.NewRepo(dbh).CreateUser(cmd.Context(), email, password, profile.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newImportQuestionsCmd(env func() config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import-questions",
		Short: "Import a JSON array of questions; nothing is written unless every record is valid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			qs, err := readQuestions(file)
			if err != nil {
				return err
			}
			dbh, err := openDB(cmd.Context(), env())
			if err != nil {
				return err
			}
			defer dbh.Close()
			n, err := exam.ImportQuestions(cmd.Context(), exam.NewSQLStore(dbh), qs, "examctl", time.Now())
			if err != nil {
				return fmt.Errorf("import after %d questions: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to questions.json")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readQuestions(path string) ([]exam.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var qs []exam.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%s: no questions", path)
	}
	return qs, nil
}

func newFinalizeExpiredCmd(env func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize-expired",
		Short: "Finalize every in-progress attempt whose deadline has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := env()
			dbh, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbh.Close()
			store := exam.NewSQLStore(dbh)
			eng := exam.NewEngine(store, store,
				exam.WithStoreTimeout(cfg.StoreTimeout),
				exam.WithRecorder(syncx.NewRecorder(syncx.NewEventRepo(dbh), cfg.SiteID)),
				exam.WithLogger(log.Logger),
			)
			done, err := eng.ExpireOverdue(cmd.Context())
			for _, a := range done {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tscore %d/%d\n", a.ID, a.UserID, a.ExamType, *a.Score, a.TotalQuestions)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "finalized %d attempts\n", len(done))
			return nil
		},
	}
}
