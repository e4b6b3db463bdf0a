package pitwall

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"justapengu.in/pitwall/internal/racesim"
)

// Debugger serves a zip bundle describing the server's sessions, useful when reporting issues.
type Debugger struct {
	config  *Config
	manager *racesim.Manager
}

func NewDebugger(config *Config, manager *racesim.Manager) *Debugger {
	return &Debugger{config: config, manager: manager}
}

func (d *Debugger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Disposition", fmt.Sprintf(`attachment;filename="pitwall_debug_bundle_%s.zip"`, time.Now().Format("2006-01-02_15_04")))
	w.Header().Add("Content-Type", "application/zip")

	if err := d.BuildDebugInfo(w); err != nil {
		logrus.WithError(err).Error("Could not build debug information")
		http.Error(w, "Could not build debug information", http.StatusInternalServerError)
		return
	}
}

func (d *Debugger) BuildDebugInfo(w io.Writer) (err error) {
	z := zip.NewWriter(w)
	defer func() {
		closeErr := z.Close()

		if err == nil {
			err = closeErr
		}
	}()

	sessions := d.manager.List()

	if err := d.addJSONFileToZip(z, "sessions.json", sessions); err != nil {
		return err
	}

	if err := d.addJSONFileToZip(z, "pitwall_config.json", d.config.Redacted()); err != nil {
		return err
	}

	for _, info := range sessions {
		session, err := d.manager.Get(info.ID)

		if err != nil {
			// destroyed while the bundle was being built
			continue
		}

		dir := "sessions/" + info.ID + "/"

		if err := d.addJSONFileToZip(z, dir+"descriptor.json", session.Descriptor()); err != nil {
			return err
		}

		if err := d.addTextToZip(z, dir+"commentary.txt", session.Commentary()); err != nil {
			return err
		}

		snapshot, err := session.Latest()

		if err != nil {
			continue
		}

		if err := d.addJSONFileToZip(z, dir+"latest.json", snapshot); err != nil {
			return err
		}

		if err := d.addTextToZip(z, dir+"leaderboard.txt", racesim.RenderLeaderboard(snapshot.Leaderboard)); err != nil {
			return err
		}
	}

	return nil
}

func (d *Debugger) addJSONFileToZip(z *zip.Writer, filename string, data interface{}) error {
	f, err := z.Create(filename)

	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	return enc.Encode(data)
}

func (d *Debugger) addTextToZip(z *zip.Writer, filename string, data string) error {
	f, err := z.Create(filename)

	if err != nil {
		return err
	}

	_, err = f.Write([]byte(data))

	return err
}
