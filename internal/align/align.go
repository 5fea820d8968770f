// Package align wraps the external subtitle alignment capability: given a
// reference track with trusted timing and a target track with trusted text,
// it produces the target text re-timed to the reference.
package align

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// ErrAlignmentFailed marks a failure of one (target, reference) pair.
// Failures are independent per pair and never fatal to sibling variants.
var ErrAlignmentFailed = errors.New("subtitle alignment failed")

// Aligner is the capability contract for the external alignment tool.
type Aligner interface {
	Align(ctx context.Context, referencePath, targetPath, outputPath string) error
}

// FFSubsync shells out to the ffsubsync binary:
//
//	ffsubsync <reference> -i <target> -o <output> --encoding utf-8
type FFSubsync struct {
	binary  string
	timeout time.Duration
}

func NewFFSubsync(binary string, timeout time.Duration) *FFSubsync {
	if binary == "" {
		binary = "ffsubsync"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &FFSubsync{binary: binary, timeout: timeout}
}

func (f *FFSubsync) Align(ctx context.Context, referencePath, targetPath, outputPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.binary,
		referencePath,
		"-i", targetPath,
		"-o", outputPath,
		"--encoding", "utf-8",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Info("Running aligner: %s %s -i %s -o %s", f.binary, referencePath, targetPath, outputPath)
	if err := cmd.Run(); err != nil {
		log.Error("Aligner failed for %s: %v (%s)", targetPath, err, stderr.String())
		return fmt.Errorf("%w: %v", ErrAlignmentFailed, err)
	}
	return nil
}
