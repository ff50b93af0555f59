package assembler

import (
	"net/url"
	"os"

	"highlight-reel-pipeline/types"
)

// Preflight lists every required input that is not a local file. Remote
// sources count as missing: only local files are rendered.
func Preflight(background string, clips []types.SelectedClip, audio types.AudioBlock) []types.MissingAsset {
	var missing []types.MissingAsset
	if !localFile(background) {
		missing = append(missing, types.MissingAsset{Kind: "background", Path: background})
	}
	for _, c := range clips {
		if !localFile(c.SourcePath) {
			missing = append(missing, types.MissingAsset{Kind: "clip", Path: c.SourcePath})
		}
	}
	for _, slot := range types.Slots {
		path, ok := audio[slot]
		if !ok {
			continue
		}
		if !localFile(path) {
			missing = append(missing, types.MissingAsset{Kind: "audio", Path: path})
		}
	}
	return missing
}

func localFile(path string) bool {
	if path == "" || isRemote(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isRemote(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme != "" && u.Host != ""
}
