package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jobpilot-ai/jobpilot/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage stored job postings",
}

var jobsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import job postings from a YAML file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importJobs(args[0])
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored job postings",
	Run: func(_ *cobra.Command, _ []string) {
		listJobs()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsImportCmd)
	jobsCmd.AddCommand(jobsListCmd)
}

type jobsFile struct {
	Jobs []struct {
		ID               string `yaml:"id"`
		Title            string `yaml:"title"`
		Description      string `yaml:"description"`
		ClientCountry    string `yaml:"client_country"`
		CategoryLabel    string `yaml:"category_label"`
		SubcategoryLabel string `yaml:"subcategory_label"`
		PostedOn         string `yaml:"posted_on"`
	} `yaml:"jobs"`
}

func importJobs(path string) {
	ctx := context.Background()
	a := newAppContext()
	defer a.close()

	raw, err := os.ReadFile(path)
	if err != nil {
		a.logger.Fatal("reading the jobs file", zap.String("path", path), zap.Error(err))
	}

	var file jobsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		a.logger.Fatal("parsing the jobs file", zap.String("path", path), zap.Error(err))
	}

	for _, j := range file.Jobs {
		job := &store.Job{
			ID:               j.ID,
			Title:            j.Title,
			Description:      j.Description,
			ClientCountry:    j.ClientCountry,
			CategoryLabel:    j.CategoryLabel,
			SubcategoryLabel: j.SubcategoryLabel,
			PostedOn:         j.PostedOn,
		}

		if err := a.store.SaveJob(ctx, job); err != nil {
			a.logger.Fatal("saving job", zap.String("job_id", j.ID), zap.Error(err))
		}
	}

	a.logger.Info("jobs imported", zap.Int("count", len(file.Jobs)), zap.String("path", path))
}

func listJobs() {
	ctx := context.Background()
	a := newAppContext()
	defer a.close()

	jobs, err := a.store.Jobs(ctx)
	if err != nil {
		a.logger.Fatal("listing jobs", zap.Error(err))
	}

	if len(jobs) == 0 {
		a.logger.Info("no jobs stored yet")
		return
	}

	for _, job := range jobs {
		fmt.Printf("%s  %s  (%s)\n", job.ID, job.Title, job.ClientCountry)
	}
}
