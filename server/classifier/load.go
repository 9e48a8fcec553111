package classifier

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/moodcam/moodcam/pkg/facenet"
)

// LoadOptions names the model artifact. A model is two files inside
// ModelDir: <name>.json (config) and <name>.weights.
type LoadOptions struct {
	ModelDir  string // eg ~/.local/share/moodcam/models
	ModelName string // eg "emonet-48"

	// Base URL to fetch missing model files from. Empty disables download,
	// in which case the files must already be on disk.
	DownloadBaseURL string
}

var modelExtensions = []string{".json", ".weights"}

func loadModel(log logs.Log, opt LoadOptions) (facenet.Classifier, error) {
	if opt.ModelName == "" {
		return nil, fmt.Errorf("No model name configured")
	}
	if opt.DownloadBaseURL != "" {
		if err := downloadModel(log, opt); err != nil {
			return nil, fmt.Errorf("Download failed: %w", err)
		}
	}
	base := filepath.Join(opt.ModelDir, opt.ModelName)
	config, err := facenet.LoadModelConfig(base + ".json")
	if err != nil {
		return nil, err
	}
	return facenet.NewCNNClassifier(config, base+".weights")
}

// If the model files are not yet downloaded, then download them now.
// Returns immediately if the files are already on disk.
func downloadModel(log logs.Log, opt LoadOptions) error {
	for _, ext := range modelExtensions {
		diskPath := filepath.Join(opt.ModelDir, opt.ModelName+ext)
		networkUrl := opt.DownloadBaseURL + "/" + opt.ModelName + ext
		if _, err := os.Stat(diskPath); os.IsNotExist(err) {
			log.Infof("Downloading %v to %v", networkUrl, diskPath)
			if err := downloadFile(networkUrl, diskPath); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func downloadFile(srcUrl, targetFile string) error {
	tempFile := targetFile + ".tmp"
	if err := os.MkdirAll(filepath.Dir(targetFile), 0755); err != nil {
		return err
	}
	resp, err := http.DefaultClient.Get(srcUrl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP error %v", resp.Status)
	}
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return err
	}
	file.Close()
	return os.Rename(tempFile, targetFile)
}
