package cmd

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/hfinger/internal/core"
)

// resetFlags restores every flag of c and its children to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestModesText(t *testing.T) {
	out, err := execute(t, "modes")
	require.NoError(t, err)

	assert.Contains(t, out, "MODE")
	assert.Contains(t, out, "0:i,1:s,2:i,3:s,6:f,7:s,8:s,9:s,10:s,11:s,12:i,13:f")
	assert.Contains(t, out, "2 *")
	assert.Contains(t, out, "0:i,2:i,3:s,6:i,9:s")
}

func TestModesJSON(t *testing.T) {
	cfgPath := writeFile(t, "hfinger.yml", `
hfinger:
  analyzer:
    modes:
      5: "9:s,7:s"
`)
	out, err := execute(t, "modes", "--format", "json", "-c", cfgPath)
	require.NoError(t, err)

	var views []modeView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 6)
	assert.Equal(t, 0, views[0].ID)
	assert.Equal(t, 5, views[5].ID)
	assert.Equal(t, "9:s,7:s", views[5].Mask)
	assert.Equal(t, []string{"header_order", "method_code"}, views[5].Fields)
}

func TestModesBadFormat(t *testing.T) {
	_, err := execute(t, "modes", "--format", "xml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := writeFile(t, "valid.yml", `
hfinger:
  analyzer:
    mode: 4
    source: native
  reporters:
    - name: console
`)
	out, err := execute(t, "validate", valid)
	require.NoError(t, err)
	assert.Equal(t, "VALID: mode 4, source native, 1 reporter(s)\n", out)

	out, err = execute(t, "validate", "-c", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "VALID")
}

func TestValidateInvalid(t *testing.T) {
	unknownReporter := writeFile(t, "reporter.yml", `
hfinger:
  reporters:
    - name: smtp
`)
	_, err := execute(t, "validate", unknownReporter)
	assert.ErrorIs(t, err, core.ErrPluginNotFound)

	badLevel := writeFile(t, "level.yml", `
hfinger:
  log:
    level: loud
`)
	_, err = execute(t, "validate", badLevel)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = execute(t, "validate")
	assert.Error(t, err)
}

func TestTablesDump(t *testing.T) {
	out, err := execute(t, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "headers:")
	assert.Contains(t, out, "host: ho")
	assert.Contains(t, out, "methods:")
	assert.Contains(t, out, "- GET")
}

func TestTablesVerify(t *testing.T) {
	out, err := execute(t, "tables", "--verify")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "OK: "), out)

	_, err = execute(t, "tables", "--verify", "--dir", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestAnalyzeFlagRules(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err, "file or directory is required")

	_, err = execute(t, "analyze", "-f", "a.pcap", "-d", "captures")
	assert.Error(t, err, "file and directory are exclusive")

	_, err = execute(t, "analyze", "-f", "a.pcap", "-m", "9", "--source", "native")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func capturePcap(t *testing.T, payload string) []byte {
	t.Helper()
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2}}
	tcp := &layers.TCP{SrcPort: 50000, DstPort: 80, ACK: true, PSH: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		eth, ip, tcp, gopacket.Payload(payload)))
	frame := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: time.Unix(1600000000, 0), CaptureLength: len(frame), Length: len(frame)}
	require.NoError(t, w.WritePacket(ci, frame))
	return out.Bytes()
}

func TestAnalyzeNativeToOutputDir(t *testing.T) {
	dir := t.TempDir()
	pcap := filepath.Join(dir, "sample.pcap")
	require.NoError(t, os.WriteFile(pcap, capturePcap(t, "GET /index.php HTTP/1.1\r\nHost: example.com\r\n\r\n"), 0644))
	outDir := filepath.Join(dir, "out")

	_, err := execute(t, "analyze", "-f", pcap, "--source", "native", "-o", outDir, "-m", "3", "--workers", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "sample.pcap.json"))
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "1|1|php||ho", records[0]["fingerprint"])
	assert.Equal(t, "10.0.0.1", records[0]["ip_src"])
	assert.Equal(t, float64(80), records[0]["port_dst"])
}

func TestAnalyzeDirWithoutCaptures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a capture"), 0644))

	_, err := execute(t, "analyze", "-d", dir, "--source", "native", "-o", filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, core.ErrNoPcapsFound)
}
