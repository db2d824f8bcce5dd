package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microsoft/PackageUploader-sub002/errkind"
)

// errStillWaiting is returned by a poll check that wants another round.
var errStillWaiting = errors.New("still waiting")

// poll calls check every interval until it returns something other than
// errStillWaiting, or until timeout elapses. On timeout the last describe()
// is reported as a ProcessingTimeout error.
func (c *Client) poll(ctx context.Context, op string, timeout time.Duration, check func() error, describe func() string) error {
	deadline := time.Now().Add(timeout)
	for {
		err := check()
		if !errors.Is(err, errStillWaiting) {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &errkind.Error{
				Kind: errkind.ProcessingTimeout,
				Op:   op,
				Err:  fmt.Errorf("gave up after %s: %s", timeout, describe()),
			}
		}

		delay := c.pollInterval
		if delay > remaining {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
}

// WaitForPackageProcessing polls the package until it reaches Processed or
// ProcessFailed. A ProcessFailed state is a ProcessingFailed error; running
// out of time is a ProcessingTimeout error.
func (c *Client) WaitForPackageProcessing(ctx context.Context, productID, packageID string, timeout time.Duration) (*Package, error) {
	op := "wait for package " + packageID
	var pkg *Package

	err := c.poll(ctx, op, timeout, func() error {
		var err error
		pkg, err = c.GetPackage(ctx, productID, packageID)
		if err != nil {
			return err
		}

		switch pkg.State {
		case PackageStateProcessed:
			return nil
		case PackageStateProcessFailed:
			details := pkg.StatusDetails
			if details == "" {
				details = "no details reported"
			}
			return errkind.Newf(errkind.ProcessingFailed, op, "package %s failed processing: %s", pkg.ID, details)
		}
		c.logger.Debugf("Package %s is %s", packageID, pkg.State)
		return errStillWaiting
	}, func() string {
		return fmt.Sprintf("package %s is still %s", packageID, pkg.State)
	})
	return pkg, err
}

// WaitForPublish polls the submission until it is published. Blocking
// validation items fail with ValidationRejected; other items are logged.
// A failed submission without blocking items is a ProcessingFailed error.
func (c *Client) WaitForPublish(ctx context.Context, productID, submissionID string, timeout time.Duration) (*Submission, error) {
	op := "wait for submission " + submissionID
	var submission *Submission
	reported := map[string]bool{}

	err := c.poll(ctx, op, timeout, func() error {
		var err error
		submission, err = c.GetSubmission(ctx, productID, submissionID)
		if err != nil {
			return err
		}

		for _, item := range submission.ValidationItems {
			if !item.Blocking() && !reported[item.String()] {
				reported[item.String()] = true
				c.logger.Warnf("Submission %s: %s", submissionID, item)
			}
		}
		if blocking := submission.BlockingItems(); len(blocking) > 0 {
			return &errkind.Error{
				Kind:     errkind.ValidationRejected,
				Op:       op,
				Resource: "submission",
				Err:      fmt.Errorf("submission has %d blocking validation item(s): %s", len(blocking), joinItems(blocking)),
			}
		}

		switch submission.State {
		case SubmissionStatePublished:
			return nil
		case SubmissionStateFailed:
			return &errkind.Error{
				Kind:     errkind.ProcessingFailed,
				Op:       op,
				Resource: "submission",
				Err:      fmt.Errorf("submission %s failed (%s)", submissionID, submission.Substate),
			}
		}
		c.logger.Debugf("Submission %s is %s/%s", submissionID, submission.State, submission.Substate)
		return errStillWaiting
	}, func() string {
		return fmt.Sprintf("submission %s is still %s/%s", submissionID, submission.State, submission.Substate)
	})
	return submission, err
}

func joinItems(items []SubmissionValidationItem) string {
	s := make([]string, len(items))
	for i, item := range items {
		s[i] = item.String()
	}
	return strings.Join(s, "; ")
}
