package vertopal

import (
	"github.com/spiffcs/morph/internal/convert"
	"github.com/spiffcs/morph/internal/log"
)

// job is the handle to one queued conversion entity.
type job struct {
	client     *Client
	connector  string
	outputPath string
}

// Poll asks the API whether the conversion entity has completed and, once
// completed, whether the conversion itself succeeded.
func (j *job) Poll() (convert.Status, error) {
	resp, err := j.client.postTask("/convert/status", map[string]any{
		"app":       j.client.appID,
		"connector": j.connector,
	})
	if err != nil {
		return convert.Status{}, err
	}

	out := resp.Result.Output
	status := convert.Status{Done: out.Entity.Status == "completed"}
	if status.Done && out.Result != nil {
		status.OK = out.Result.Output.Status == "successful"
	}
	log.Trace("poll", "connector", j.connector, "task", out.Entity.Status, "done", status.Done, "ok", status.OK)
	return status, nil
}

// Download requests a download task for the converted output, then streams
// its content to the job's output path.
func (j *job) Download() error {
	resp, err := j.client.postTask("/download/url", map[string]any{
		"app":       j.client.appID,
		"connector": j.connector,
	})
	if err != nil {
		return err
	}

	download := resp.Result.Output.Connector
	if download == "" {
		return &convert.RemoteError{Message: "download connector missing from server response"}
	}
	return j.client.download(download, j.outputPath)
}
