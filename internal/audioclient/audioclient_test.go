package audioclient

import "testing"

func TestEnumeratePorts(t *testing.T) {
	c := &Client{name: "audiobridge", cfg: Config{PhysicalCaptureCount: 2, PhysicalPlaybackCount: 4}}

	captures := c.EnumeratePorts(PhysicalCapture)
	if len(captures) != 2 {
		t.Fatalf("len(captures) = %d, want 2", len(captures))
	}
	if captures[0] != "system:capture_1" || captures[1] != "system:capture_2" {
		t.Fatalf("captures = %v", captures)
	}

	playbacks := c.EnumeratePorts(PhysicalPlayback)
	if len(playbacks) != 4 {
		t.Fatalf("len(playbacks) = %d, want 4", len(playbacks))
	}
	if playbacks[3] != "system:playback_4" {
		t.Fatalf("playbacks[3] = %s, want system:playback_4", playbacks[3])
	}
}

func TestRegisterPortNaming(t *testing.T) {
	c := &Client{name: "audiobridge"}

	in, err := c.RegisterPort("input_0", Input)
	if err != nil {
		t.Fatalf("RegisterPort() error = %v", err)
	}
	if in.FullName != "audiobridge:input_0" {
		t.Fatalf("FullName = %s, want audiobridge:input_0", in.FullName)
	}

	out, err := c.RegisterPort("output_0", Output)
	if err != nil {
		t.Fatalf("RegisterPort() error = %v", err)
	}
	if out.FullName != "audiobridge:output_0" {
		t.Fatalf("FullName = %s, want audiobridge:output_0", out.FullName)
	}

	if len(c.inputPorts) != 1 || len(c.outputPorts) != 1 {
		t.Fatalf("inputPorts=%d outputPorts=%d, want 1/1", len(c.inputPorts), len(c.outputPorts))
	}
}

func TestUnregisterAllPorts(t *testing.T) {
	c := &Client{name: "audiobridge"}
	c.RegisterPort("input_0", Input)
	c.RegisterPort("output_0", Output)

	c.UnregisterAllPorts()

	if len(c.inputPorts) != 0 || len(c.outputPorts) != 0 {
		t.Fatalf("ports not cleared: inputs=%d outputs=%d", len(c.inputPorts), len(c.outputPorts))
	}
}

func TestConnectAlwaysSucceeds(t *testing.T) {
	c := &Client{name: "audiobridge"}
	if err := c.Connect("system:capture_1", "audiobridge:input_0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := &Client{name: "audiobridge", terminated: true}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
