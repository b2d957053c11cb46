package bridge

import (
	"strconv"
	"strings"

	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
)

// assembleOutput renders actuator lengths as a single command frame of
// the form "<v0,v1,v2,v3,v4,v5>". Values are truncated toward zero;
// the firmware parser only understands whole millimeters.
func assembleOutput(lengths [kinematics.NumActuators]float64) string {
	var b strings.Builder
	b.WriteByte('<')
	for i, l := range lengths {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(l)))
	}
	b.WriteByte('>')
	return b.String()
}
