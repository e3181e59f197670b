package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"neurorace/internal/model"
)

const (
	runFile    = "run.json"
	seriesFile = "generations.csv"
)

var seriesHeader = []string{"generation", "max_fitness", "mean_fitness", "diversity", "ticks"}

type RunArtifacts struct {
	Run       model.RunRecord
	Summaries []model.GenerationSummary
}

// WriteRunArtifacts writes run.json and generations.csv under
// baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if err := WriteGenerationSeries(runDir, artifacts.Summaries); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadRun(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

// ListRuns reads every run.json under baseDir, newest first. A missing
// baseDir yields no runs.
func ListRuns(baseDir string) ([]model.RunRecord, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.RunRecord{}, nil
		}
		return nil, err
	}
	runs := make([]model.RunRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, ok, err := ReadRun(baseDir, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read run %s: %w", entry.Name(), err)
		}
		if ok {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt > runs[j].CreatedAt
		}
		return runs[i].ID > runs[j].ID
	})
	return runs, nil
}

// ExportRunArtifacts copies a run's artifact files into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range []string{runFile, seriesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func WriteGenerationSeries(runDir string, summaries []model.GenerationSummary) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	if err := writeSeries(file, summaries); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeSeries(w io.Writer, summaries []model.GenerationSummary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := writer.Write([]string{
			strconv.Itoa(s.Generation),
			strconv.FormatFloat(s.MaxFitness, 'f', -1, 64),
			strconv.FormatFloat(s.MeanFitness, 'f', -1, 64),
			strconv.FormatFloat(s.Diversity, 'f', -1, 64),
			strconv.Itoa(s.Ticks),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadGenerationSeries(baseDir, runID string) ([]model.GenerationSummary, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationSummary{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(seriesHeader) {
		return nil, false, fmt.Errorf("generation series header must have %d columns, got %d", len(seriesHeader), len(header))
	}

	series := make([]model.GenerationSummary, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		summary, err := parseSeriesRow(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, summary)
	}
	return series, true, nil
}

func parseSeriesRow(record []string) (model.GenerationSummary, error) {
	var (
		s   model.GenerationSummary
		err error
	)
	if s.Generation, err = strconv.Atoi(record[0]); err != nil {
		return s, fmt.Errorf("generation: %w", err)
	}
	if s.MaxFitness, err = strconv.ParseFloat(record[1], 64); err != nil {
		return s, fmt.Errorf("max_fitness: %w", err)
	}
	if s.MeanFitness, err = strconv.ParseFloat(record[2], 64); err != nil {
		return s, fmt.Errorf("mean_fitness: %w", err)
	}
	if s.Diversity, err = strconv.ParseFloat(record[3], 64); err != nil {
		return s, fmt.Errorf("diversity: %w", err)
	}
	if s.Ticks, err = strconv.Atoi(record[4]); err != nil {
		return s, fmt.Errorf("ticks: %w", err)
	}
	return s, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
