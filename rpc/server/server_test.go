package server

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	catalogtesting "github.com/ValentinKolb/dDetect/lib/catalog/testing"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/ValentinKolb/dDetect/rpc/serializer"
	rpchttp "github.com/ValentinKolb/dDetect/rpc/transport/http"
	"github.com/goccy/go-json"
)

const windowsChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.6367.91 Safari/537.36"

// newTestServer creates a server serving the devices fixture as catalog 1
func newTestServer(t *testing.T, s serializer.IRPCSerializer) *RPCServer {
	t.Helper()

	srv := NewRPCServer(common.ServerConfig{LogLevel: "error", Workers: 1}, rpchttp.NewHttpServerTransport(), s)
	c, err := catalog.LoadBytes(catalogtesting.Bytes(t, catalogtesting.Devices()), catalog.Options{Mode: catalog.ModeEager})
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	if err := srv.AddCatalog(1, c); err != nil {
		t.Fatalf("AddCatalog failed: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return srv
}

// call sends a message through the request handler of the server
func call(t *testing.T, srv *RPCServer, catalogId uint64, req *common.Message) common.Message {
	t.Helper()

	data, err := srv.serializer.Serialize(*req)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	var resp common.Message
	if err := srv.serializer.Deserialize(srv.handle(catalogId, data), &resp); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	return resp
}

func decodeResult(t *testing.T, resp common.Message) common.MatchResult {
	t.Helper()
	if resp.Err != "" {
		t.Fatalf("Unexpected error: %s", resp.Err)
	}
	var res common.MatchResult
	if err := json.Unmarshal(resp.Payload, &res); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	return res
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

func TestHandleMatch(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		t.Run(name, func(t *testing.T) {
			s, err := serializer.New(name)
			if err != nil {
				t.Fatalf("serializer.New failed: %v", err)
			}
			srv := newTestServer(t, s)

			resp := call(t, srv, 1, common.NewMatchRequest(windowsChrome, match.StageNone))
			if resp.MsgType != common.MsgTMatch || !resp.Ok {
				t.Fatalf("Expected ok match response, got %+v", resp)
			}

			res := decodeResult(t, resp)
			if res.Method != match.MethodExact || res.SignatureIndex != 3 || res.Signature != windowsChrome {
				t.Errorf("Expected exact match of signature 3, got %s %d", res.Method, res.SignatureIndex)
			}
			if res.DeviceID != "17779-17472-18093" {
				t.Errorf("Expected device id 17779-17472-18093, got %s", res.DeviceID)
			}
			if !reflect.DeepEqual(res.ProfileIDs, []int{17779, 17472, 18093}) {
				t.Errorf("Unexpected profile ids %v", res.ProfileIDs)
			}

			expected := map[string][]string{
				"IsMobile":       {"False"},
				"HardwareVendor": {"Unknown"},
				"PlatformName":   {"Windows"},
				"BrowserName":    {"Chrome"},
			}
			if !reflect.DeepEqual(res.Properties, expected) {
				t.Errorf("Expected properties %v, got %v", expected, res.Properties)
			}
		})
	}
}

func TestHandleMatchStage(t *testing.T) {
	srv := newTestServer(t, serializer.NewJSONSerializer())

	resp := call(t, srv, 1, common.NewMatchRequest("Mozilla/5.0 (Nokia 3310)", match.StageRIS))
	res := decodeResult(t, resp)
	if res.Stage != match.StageRIS || res.SignatureIndex != 0 {
		t.Errorf("Expected ris match of signature 0, got %s %d", res.Stage, res.SignatureIndex)
	}

	// exact only, nothing found
	resp = call(t, srv, 1, common.NewMatchRequest("Mozilla/5.0 (Nokia 3310)", match.StageExact))
	res = decodeResult(t, resp)
	if resp.Ok || res.Method != match.MethodNone || res.SignatureIndex != -1 || len(res.Properties) != 0 {
		t.Errorf("Expected no match, got %+v", res)
	}

	resp = call(t, srv, 1, &common.Message{MsgType: common.MsgTMatch, Target: "x", Stage: "fuzzy"})
	if resp.Err == "" {
		t.Error("Expected error for unknown stage")
	}
}

func TestHandleMatchHeaders(t *testing.T) {
	srv := newTestServer(t, serializer.NewBinarySerializer())

	resp := call(t, srv, 1, common.NewMatchHeadersRequest(map[string]string{
		"user-agent": windowsChrome,
		"Accept":     "text/html",
	}))
	res := decodeResult(t, resp)
	if !resp.Ok || res.Method != match.MethodExact {
		t.Errorf("Expected exact header match, got %s", res.Method)
	}
	if res.Targets["User-Agent"] != windowsChrome || len(res.Targets) != 1 {
		t.Errorf("Unexpected targets %v", res.Targets)
	}
}

func TestHandleDeviceID(t *testing.T) {
	srv := newTestServer(t, serializer.NewJSONSerializer())

	res := decodeResult(t, call(t, srv, 1, common.NewDeviceIDRequest("15364-17471-18094")))
	if res.Method != match.MethodNumeric || res.SignatureIndex != -1 {
		t.Errorf("Expected numeric match without signature, got %s %d", res.Method, res.SignatureIndex)
	}
	if got := res.Properties["BrowserName"]; !reflect.DeepEqual(got, []string{"Edge"}) {
		t.Errorf("Expected browser Edge, got %v", got)
	}

	resp := call(t, srv, 1, common.NewDeviceIDRequest("1-2-3"))
	if resp.Ok || resp.Err != "" {
		t.Errorf("Expected no match without error, got %+v", resp)
	}
}

func TestHandleProfiles(t *testing.T) {
	srv := newTestServer(t, serializer.NewJSONSerializer())

	resp := call(t, srv, 1, common.NewProfilesRequest("IsMobile", "True"))
	if resp.Err != "" {
		t.Fatalf("Unexpected error: %s", resp.Err)
	}
	var profiles []common.ProfileInfo
	if err := json.Unmarshal(resp.Payload, &profiles); err != nil {
		t.Fatalf("Failed to decode profiles: %v", err)
	}
	if len(profiles) != catalogtesting.MobileProfiles {
		t.Fatalf("Expected %d profiles, got %d", catalogtesting.MobileProfiles, len(profiles))
	}
	for i, id := range []int{12280, 12281, 15364} {
		if profiles[i].ID != id || profiles[i].Component != "HardwarePlatform" {
			t.Errorf("Expected profile %d of HardwarePlatform, got %+v", id, profiles[i])
		}
	}

	resp = call(t, srv, 1, common.NewProfilesRequest("Colour", "Red"))
	if !strings.Contains(resp.Err, "unknown property") {
		t.Errorf("Expected unknown property error, got %q", resp.Err)
	}
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(t, serializer.NewJSONSerializer())

	resp := call(t, srv, 1, common.NewInfoRequest())
	if resp.Err != "" {
		t.Fatalf("Unexpected error: %s", resp.Err)
	}
	var info common.CatalogInfo
	if err := json.Unmarshal(resp.Payload, &info); err != nil {
		t.Fatalf("Failed to decode info: %v", err)
	}
	if info.Name != "devices" || info.Signatures != 6 || info.Profiles != 10 || info.Mode != "eager" {
		t.Errorf("Unexpected info %+v", info)
	}
	if !reflect.DeepEqual(info.Components, []string{"HardwarePlatform", "SoftwarePlatform", "BrowserUA"}) {
		t.Errorf("Unexpected components %v", info.Components)
	}
}

func TestHandleErrors(t *testing.T) {
	srv := newTestServer(t, serializer.NewJSONSerializer())

	resp := call(t, srv, 42, common.NewInfoRequest())
	if resp.MsgType != common.MsgTError || !strings.Contains(resp.Err, "catalog 42 not found") {
		t.Errorf("Expected catalog not found error, got %+v", resp)
	}

	resp = call(t, srv, 1, &common.Message{MsgType: common.MsgTSuccess})
	if resp.MsgType != common.MsgTError {
		t.Errorf("Expected error for unsupported message type, got %s", resp.MsgType)
	}

	var msg common.Message
	if err := srv.serializer.Deserialize(srv.handle(1, []byte("{not json")), &msg); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if msg.MsgType != common.MsgTError || !strings.Contains(msg.Err, "deserialize") {
		t.Errorf("Expected deserialize error, got %+v", msg)
	}

	c, err := catalog.LoadBytes(catalogtesting.Bytes(t, catalogtesting.ThreeSignatures()), catalog.Options{})
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	defer c.Close()
	if err := srv.AddCatalog(1, c); err == nil {
		t.Error("Expected error for duplicate catalog id")
	}
}

// --------------------------------------------------------------------------
// Metrics & Setup
// --------------------------------------------------------------------------

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, serializer.NewJSONSerializer())

	call(t, srv, 1, common.NewMatchRequest(windowsChrome, match.StageNone))
	call(t, srv, 1, common.NewProfilesRequest("Colour", "Red"))
	call(t, srv, 7, common.NewInfoRequest())

	var buf bytes.Buffer
	srv.WriteMetrics(&buf)
	out := buf.String()

	for _, line := range []string{
		`ddetect_requests_total{catalog="1",type="match"} 1`,
		`ddetect_request_errors_total{catalog="1",type="profiles"} 1`,
		`ddetect_requests_rejected_total{reason="unknown_catalog"} 1`,
		`ddetect_matches{catalog="1",method="Exact"} 1`,
		`ddetect_catalog_signatures{catalog="1"} 6`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("Expected metrics to contain %q", line)
		}
	}
}

func TestInitLoadsConfiguredCatalogs(t *testing.T) {
	dir := t.TempDir()
	devices := filepath.Join(dir, "devices.dat")
	three := filepath.Join(dir, "three.dat")
	if err := os.WriteFile(devices, catalogtesting.Bytes(t, catalogtesting.Devices()), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(three, catalogtesting.Bytes(t, catalogtesting.ThreeSignatures()), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	srv := NewRPCServer(common.ServerConfig{
		Catalogs: []common.ServerCatalog{
			{CatalogID: 1, Path: devices, Mode: "lazy"},
			{CatalogID: 2, Path: three, Mode: "eager"},
		},
		LogLevel: "error",
		Workers:  1,
	}, rpchttp.NewHttpServerTransport(), serializer.NewJSONSerializer())
	defer srv.Close()

	if err := srv.init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res := decodeResult(t, call(t, srv, 1, common.NewMatchRequest(windowsChrome, match.StageNone)))
	if res.DeviceID != "17779-17472-18093" {
		t.Errorf("Expected device id 17779-17472-18093, got %s", res.DeviceID)
	}
	res = decodeResult(t, call(t, srv, 2, common.NewMatchRequest("Opera/9 D", match.StageNone)))
	if res.SignatureIndex != 2 || res.Method != match.MethodNearest {
		t.Errorf("Expected nearest signature 2, got %s %d", res.Method, res.SignatureIndex)
	}

	var info common.CatalogInfo
	if err := json.Unmarshal(call(t, srv, 1, common.NewInfoRequest()).Payload, &info); err != nil {
		t.Fatalf("Failed to decode info: %v", err)
	}
	if info.Mode != "lazy" || len(info.Caches) != 4 {
		t.Errorf("Expected lazy catalog with 4 caches, got %s with %d", info.Mode, len(info.Caches))
	}
}

func TestInitFailsForMissingFile(t *testing.T) {
	srv := NewRPCServer(common.ServerConfig{
		Catalogs: []common.ServerCatalog{{CatalogID: 1, Path: filepath.Join(t.TempDir(), "missing.dat")}},
		LogLevel: "error",
	}, rpchttp.NewHttpServerTransport(), serializer.NewJSONSerializer())

	err := srv.init()
	if err == nil {
		t.Fatal("Expected error for missing catalog file")
	}
	if !strings.Contains(err.Error(), "catalog 1") {
		t.Errorf("Expected error to name the catalog, got %v", err)
	}
}

func TestInitConcurrentLoadFailure(t *testing.T) {
	dir := t.TempDir()
	devices := filepath.Join(dir, "devices.dat")
	if err := os.WriteFile(devices, catalogtesting.Bytes(t, catalogtesting.Devices()), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	srv := NewRPCServer(common.ServerConfig{
		Catalogs: []common.ServerCatalog{
			{CatalogID: 1, Path: devices, Mode: "eager"},
			{CatalogID: 2, Path: filepath.Join(dir, "missing.dat"), Mode: "eager"},
			{CatalogID: 3, Path: devices, Mode: "lazy"},
		},
		LogLevel: "error",
	}, rpchttp.NewHttpServerTransport(), serializer.NewJSONSerializer())

	err := srv.init()
	if err == nil {
		t.Fatal("Expected error for missing catalog file")
	}
	if !strings.Contains(err.Error(), "catalog 2") {
		t.Errorf("Expected error to name catalog 2, got %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, ok := srv.catalogs.Load(1); ok {
		t.Errorf("Expected Close to release the loaded catalogs")
	}
}

func TestMatchOptions(t *testing.T) {
	srv := NewRPCServer(common.ServerConfig{MaxDistance: 0.3, Workers: 3}, rpchttp.NewHttpServerTransport(), serializer.NewJSONSerializer())
	opts := srv.matchOptions()
	if opts.MaxDistance != 0.3 || opts.Workers != 3 || opts.ParallelThreshold != match.DefaultOptions().ParallelThreshold {
		t.Errorf("Unexpected options %+v", opts)
	}
}

func TestWriteCatalogMetrics(t *testing.T) {
	c, err := catalog.LoadBytes(catalogtesting.Bytes(t, catalogtesting.ThreeSignatures()), catalog.Options{Mode: catalog.ModeLazy})
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	defer c.Close()

	var buf bytes.Buffer
	WriteCatalogMetrics(&buf, 5, c)
	for _, line := range []string{
		`ddetect_catalog_signatures{catalog="5"} 3`,
		`ddetect_cache_size{catalog="5",entity="signatures"} `,
		`ddetect_pool_decoders_created{catalog="5"} `,
	} {
		if !strings.Contains(buf.String(), line) {
			t.Errorf("Expected metrics to contain %q", line)
		}
	}
}
