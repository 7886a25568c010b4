package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// copyToBad 把失败的源文件复制到 bad 目录，并写入 <stem>_ERROR.txt。
// 返回副本路径，复制失败时为空。
func (p *Pipeline) copyToBad(job Job, r Result) string {
	if p.opts.BadDir == "" {
		return ""
	}
	if err := os.MkdirAll(p.opts.BadDir, os.ModePerm); err != nil {
		p.logger.Warn("create bad dir", "dir", p.opts.BadDir, "error", err)
		return ""
	}

	name := filepath.Base(job.Input)
	dst := filepath.Join(p.opts.BadDir, name)
	if err := copyFile(job.Input, dst); err != nil {
		p.logger.Warn("copy to bad dir", "src", job.Input, "error", err)
		dst = ""
	}

	note := filepath.Join(p.opts.BadDir, strings.TrimSuffix(name, filepath.Ext(name))+"_ERROR.txt")
	msg := fmt.Sprintf("%s (stage: %s)\n", r.Reason, r.Stage)
	if r.Error != "" {
		msg += "\n" + r.Error + "\n"
	}
	if err := os.WriteFile(note, []byte(msg), 0o644); err != nil {
		p.logger.Warn("write error note", "path", note, "error", err)
	}
	return dst
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
