//go:build !opencl

package opencl

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/moratsam/rsparity/gf"
	"github.com/moratsam/rsparity/pu"
)

// New reports the accelerator as unavailable in builds without the opencl tag;
// the engine then runs every stripe on the CPU.
func New(f *gf.Field, segment int, log logrus.FieldLogger) (pu.Accelerator, error) {
	return nil, xerrors.Errorf("built without opencl: %w", pu.ErrUnavailable)
}
