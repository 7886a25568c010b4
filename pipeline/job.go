package pipeline

import (
	"errors"
	"time"

	"github.com/chaos-io/removebg-square/rembg"
)

// Job 一个输入文件及其输出路径
type Job struct {
	Input  string `json:"src"`
	Output string `json:"dest"`
}

type Status string

const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Stage 失败发生的阶段
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageRemove    Stage = "remove"
	StageComposite Stage = "composite"
	StageSave      Stage = "save"
)

// Result 每个 Job 的处理结果
type Result struct {
	Job
	Status     Status  `json:"status"`
	Stage      Stage   `json:"stage,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`
	StatusCode int     `json:"status_code,omitempty"`
	BadCopy    string  `json:"bad_copy,omitempty"`
	Seconds    float64 `json:"seconds"`

	Err error `json:"-"`
}

func failed(job Job, stage Stage, reason string, err error) Result {
	r := Result{
		Job:    job,
		Status: StatusFailed,
		Stage:  stage,
		Reason: reason,
		Err:    err,
	}
	if err != nil {
		r.Error = truncate(err.Error(), 2000)
	}
	var apiErr *rembg.APIError
	if errors.As(err, &apiErr) {
		r.StatusCode = apiErr.StatusCode
	}
	return r
}

func skipped(job Job, reason string, err error) Result {
	r := Result{Job: job, Status: StatusSkipped, Reason: reason, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Summary 一次批处理的汇总
type Summary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Seconds   float64   `json:"seconds"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Results   []Result  `json:"results"`
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	s.Total++
	switch r.Status {
	case StatusProcessed:
		s.Processed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// HasFailures 是否有失败的 Job，决定进程退出码
func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}

// Written 成功写出的文件
func (s *Summary) Written() []string {
	var out []string
	for _, r := range s.Results {
		if r.Status == StatusProcessed {
			out = append(out, r.Output)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
