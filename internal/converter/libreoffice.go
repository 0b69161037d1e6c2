// Package converter turns office documents into PDFs with headless
// LibreOffice so they can go through the compression pipeline.
package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/metrics"
)

// LibreOffice converts documents via one-shot headless invocations.
type LibreOffice struct {
	binary     string
	timeout    time.Duration
	maxWorkers int
	semaphore  chan struct{}
}

// Result describes one conversion.
type Result struct {
	Success     bool
	OutputPath  string
	Error       string
	Duration    time.Duration
	IsProtected bool
}

// NewLibreOffice creates a converter. binary is the soffice executable
// path; maxWorkers caps concurrent conversions.
func NewLibreOffice(binary string, timeout time.Duration, maxWorkers int) *LibreOffice {
	if binary == "" {
		binary = "soffice"
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	return &LibreOffice{
		binary:     binary,
		timeout:    timeout,
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// CheckInstallation verifies LibreOffice is available.
func (l *LibreOffice) CheckInstallation() error {
	output, err := exec.Command(l.binary, "--version").Output()
	if err != nil {
		return fmt.Errorf("LibreOffice not found in PATH: %w", err)
	}
	log.Info().Str("version", strings.TrimSpace(string(output))).Msg("LibreOffice found")
	return nil
}

// ConvertToPDF converts a document to PDF at outputPath.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, inputPath, outputPath string) Result {
	startTime := time.Now()

	l.semaphore <- struct{}{}
	defer func() { <-l.semaphore }()

	log.Info().Str("input", inputPath).Str("output", outputPath).Msg("starting conversion")

	if err := l.validateInput(inputPath); err != nil {
		metrics.IncConversion("failed")
		return Result{Error: fmt.Sprintf("input validation failed: %v", err), Duration: time.Since(startTime)}
	}

	if protected := l.isPasswordProtected(ctx, inputPath); protected {
		metrics.IncConversion("protected")
		return Result{Error: "document is password protected", Duration: time.Since(startTime), IsProtected: true}
	}

	// Each conversion gets its own profile dir; LibreOffice refuses to
	// run concurrently against a shared profile.
	profileDir := filepath.Join(os.TempDir(), fmt.Sprintf("libreoffice_profile_%s", uuid.New().String()))
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		metrics.IncConversion("failed")
		return Result{Error: fmt.Sprintf("failed to create profile directory: %v", err), Duration: time.Since(startTime)}
	}
	defer os.RemoveAll(profileDir)

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		metrics.IncConversion("failed")
		return Result{Error: fmt.Sprintf("failed to create output directory: %v", err), Duration: time.Since(startTime)}
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx,
		l.binary,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outputDir,
		inputPath,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if err := cmd.Run(); err != nil {
		metrics.IncConversion("failed")
		if cctx.Err() == context.DeadlineExceeded {
			return Result{Error: fmt.Sprintf("conversion timeout after %v", l.timeout), Duration: time.Since(startTime)}
		}
		return Result{Error: fmt.Sprintf("conversion failed: %v", err), Duration: time.Since(startTime)}
	}

	// LibreOffice names the output after the input file.
	expectedOutput := l.expectedOutputPath(inputPath, outputDir)
	actualOutput := outputPath
	if expectedOutput != actualOutput {
		if _, err := os.Stat(expectedOutput); err == nil {
			if err := os.Rename(expectedOutput, actualOutput); err != nil {
				log.Warn().Err(err).Str("from", expectedOutput).Str("to", actualOutput).Msg("failed to rename")
				actualOutput = expectedOutput
			}
		}
	}

	if _, err := os.Stat(actualOutput); err != nil {
		metrics.IncConversion("failed")
		return Result{Error: fmt.Sprintf("output file not created: %v", err), Duration: time.Since(startTime)}
	}

	metrics.IncConversion("success")
	log.Info().Str("output", actualOutput).Dur("duration", time.Since(startTime)).Msg("conversion successful")
	return Result{Success: true, OutputPath: actualOutput, Duration: time.Since(startTime)}
}

// validateInput checks if the input file is readable and non-empty.
func (l *LibreOffice) validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("file not readable: %w", err)
	}
	return file.Close()
}

// isPasswordProtected does a best-effort probe for encrypted documents.
func (l *LibreOffice) isPasswordProtected(ctx context.Context, filePath string) bool {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	output, err := exec.CommandContext(cctx, l.binary, "--headless", "--cat", filePath).CombinedOutput()
	if err != nil {
		out := strings.ToLower(string(output))
		return strings.Contains(out, "password") ||
			strings.Contains(out, "encrypted") ||
			strings.Contains(out, "protected")
	}
	return false
}

// expectedOutputPath is where LibreOffice will write the converted file.
func (l *LibreOffice) expectedOutputPath(inputPath, outputDir string) string {
	baseName := filepath.Base(inputPath)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	return filepath.Join(outputDir, nameWithoutExt+".pdf")
}

// SupportedExtensions lists file extensions accepted for conversion.
func (l *LibreOffice) SupportedExtensions() []string {
	return []string{
		"doc", "docx", "rtf", "odt",
		"xls", "xlsx", "ods", "csv",
		"ppt", "pptx", "odp",
	}
}

// IsSupported checks if a file extension is supported for conversion.
func (l *LibreOffice) IsSupported(extension string) bool {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	for _, s := range l.SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}
