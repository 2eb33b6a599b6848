package conda

import (
	"context"

	"github.com/pcdshub/pkgci/credentials"
	"github.com/pcdshub/pkgci/errors"
	"github.com/pcdshub/pkgci/executor"
)

// tokenEnvVar is the variable the upload client reads its API token from.
// The token is injected into the upload invocation's environment only;
// the parent process environment is never modified.
const tokenEnvVar = "ANACONDA_API_TOKEN"

// Uploader publishes built artifacts to the package channel.
type Uploader struct {
	tool *executor.Tool
	opts *options
}

// NewUploader creates an Uploader.
func NewUploader(opts ...Option) *Uploader {
	o := newOptions(opts...)
	return &Uploader{
		tool: executor.NewTool(uploadBinary, o.executor, executor.WithLogger(o.logger)),
		opts: o,
	}
}

// Upload publishes the built artifact file using the referenced
// credential. The upload client does not expand patterns, so the caller
// hands over the concrete path the build produced. The credential value is
// resolved just-in-time, applied to this single invocation's environment,
// and cleared when the call returns. A single attempt is made; there is no
// retry.
func (u *Uploader) Upload(
	ctx context.Context,
	resolver credentials.Resolver,
	ref credentials.Ref,
	artifactPath, channel string,
) error {
	if artifactPath == "" {
		return errors.New(errors.CodeInvalidInput, "artifact path is required")
	}

	args := []string{"upload", "--force"}
	if channel != "" {
		args = append(args, "--user", channel)
	}
	args = append(args, artifactPath)

	u.opts.logger.Info("uploading artifact", "artifact", artifactPath, "channel", channel, "credential", ref.Name)

	err := credentials.WithValue(ctx, resolver, ref, func(token string) error {
		result, runErr := u.tool.Run(ctx, args, executor.WithEnvVar(tokenEnvVar, token))
		if runErr != nil {
			return errors.WrapWithContext(
				runErr,
				errors.CodePublishFailed,
				"artifact upload failed",
				map[string]interface{}{
					"artifact":  artifactPath,
					"exit_code": exitCode(result),
					"stderr":    tail(result),
				},
			)
		}
		return nil
	})
	return err
}
