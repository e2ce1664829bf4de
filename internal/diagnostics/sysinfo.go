package diagnostics

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// writeHostState appends a point-in-time host resource summary to a report.
// Every probe is best-effort: a host where a collector fails still gets a
// report, just with that section marked unavailable.
func writeHostState(w io.Writer) {
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(w, "memory: %.0f MB used / %.0f MB total (%.1f%%)\n",
			float64(vm.Used)/1024/1024, float64(vm.Total)/1024/1024, vm.UsedPercent)
	} else {
		fmt.Fprintf(w, "memory: unavailable (%v)\n", err)
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		model := strings.TrimSpace(infos[0].ModelName)
		cores, _ := cpu.Counts(false)
		threads, _ := cpu.Counts(true)
		fmt.Fprintf(w, "cpu: %s (%d cores, %d threads)\n", model, cores, threads)
	} else {
		fmt.Fprintln(w, "cpu: unavailable")
	}

	if avg, err := load.Avg(); err == nil {
		fmt.Fprintf(w, "load: %.2f %.2f %.2f\n", avg.Load1, avg.Load5, avg.Load15)
	}

	if usage, err := disk.Usage(rootDiskPath()); err == nil {
		fmt.Fprintf(w, "disk: %.1f GB used / %.1f GB total (%.1f%%)\n",
			float64(usage.Used)/1024/1024/1024, float64(usage.Total)/1024/1024/1024, usage.UsedPercent)
	}

	for _, name := range gpuNames() {
		fmt.Fprintf(w, "gpu: %s\n", name)
	}
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + "\\"
	}
	return "/"
}

// gpuNames lists installed graphics devices. GPU discovery fails on
// headless and containerized hosts; that is a normal outcome.
func gpuNames() []string {
	info, err := ghw.GPU()
	if err != nil || info == nil || len(info.GraphicsCards) == 0 {
		return nil
	}

	names := make([]string, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		name := ""
		if card.DeviceInfo != nil {
			switch {
			case card.DeviceInfo.Vendor != nil && card.DeviceInfo.Product != nil:
				name = strings.TrimSpace(card.DeviceInfo.Vendor.Name + " " + card.DeviceInfo.Product.Name)
			case card.DeviceInfo.Product != nil:
				name = strings.TrimSpace(card.DeviceInfo.Product.Name)
			case card.DeviceInfo.Vendor != nil:
				name = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
			}
		}
		if name == "" {
			name = fmt.Sprintf("GPU %d", card.Index)
		}
		names = append(names, name)
	}
	return names
}
