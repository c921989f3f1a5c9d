package condition

import "fmt"

// Kind is the discriminator selecting which monitoring rule shape is active.
// Exactly one variant payload is populated per Condition instance.
type Kind string

const (
	AntivirusHealthKind    Kind = "AntivirusHealth"
	BatteryMonitoringKind  Kind = "BatteryMonitoring"
	BitlockerStatusKind    Kind = "BitlockerStatus"
	CPUKind                Kind = "CPU"
	CriticalEventsKind     Kind = "CriticalEvents"
	CustomFieldsKind       Kind = "CustomFields"
	DeviceDownKind         Kind = "DeviceDown"
	DiskActiveTimeKind     Kind = "DiskActiveTime"
	DiskFreeSpaceKind      Kind = "DiskFreeSpace"
	DiskTransferRateKind   Kind = "DiskTransferRate"
	DiskUsageKind          Kind = "DiskUsage"
	MemoryKind             Kind = "Memory"
	NetworkUtilizationKind Kind = "NetworkUtilization"
	OSPatchCVSSScoreKind   Kind = "OSPatchCVSSScore"
	PatchLastInstalledKind Kind = "PatchLastInstalled"
	ProcessKind            Kind = "Process"
	ProcessResourceKind    Kind = "ProcessResource"
	RAIDHealthStatusKind   Kind = "RAIDHealthStatus"
	RebootPendingKind      Kind = "RebootPending"
	ScriptResultKind       Kind = "ScriptResultCondition"
	SoftwareKind           Kind = "Software"
	SystemUptimeKind       Kind = "SystemUptime"
	WindowsEventKind       Kind = "WindowsEvent"
	WindowsServiceKind     Kind = "WindowsService"
	WindowsSMARTStatusKind Kind = "WindowsSMARTStatusDegraded"
)

// kindSections maps each kind to its section name under [Condition.*] in the
// document format.
var kindSections = map[Kind]string{
	AntivirusHealthKind:    "Antivirus_Health",
	BatteryMonitoringKind:  "Battery_Monitoring",
	BitlockerStatusKind:    "Bitlocker_Status",
	CPUKind:                "CPU",
	CriticalEventsKind:     "Critical_Events",
	CustomFieldsKind:       "Custom_Fields",
	DeviceDownKind:         "Device_Down",
	DiskActiveTimeKind:     "Disk_Active_Time",
	DiskFreeSpaceKind:      "Disk_Free_Space",
	DiskTransferRateKind:   "Disk_Transfer_Rate",
	DiskUsageKind:          "Disk_Usage",
	MemoryKind:             "Memory",
	NetworkUtilizationKind: "Network_Utilization",
	OSPatchCVSSScoreKind:   "OS_Patch_CVSS_Score",
	PatchLastInstalledKind: "Patch_Last_Installed",
	ProcessKind:            "Process",
	ProcessResourceKind:    "Process_Resource",
	RAIDHealthStatusKind:   "RAID_Health_Status",
	RebootPendingKind:      "Reboot_Pending",
	ScriptResultKind:       "Script_Result_Condition",
	SoftwareKind:           "Software",
	SystemUptimeKind:       "System_Uptime",
	WindowsEventKind:       "Windows_Event",
	WindowsServiceKind:     "Windows_Service",
	WindowsSMARTStatusKind: "Windows_SMART_Status_Degraded",
}

var sectionKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindSections))
	for k, s := range kindSections {
		m[s] = k
	}
	return m
}()

// Section returns the document section name for the kind.
func (k Kind) Section() string {
	return kindSections[k]
}

// KindForSection resolves a [Condition.<name>] section name to its kind.
func KindForSection(name string) (Kind, error) {
	k, ok := sectionKinds[name]
	if !ok {
		return "", fmt.Errorf("unknown condition section %q", name)
	}
	return k, nil
}

// Kinds returns all condition kinds in stable order.
func Kinds() []Kind {
	return []Kind{
		AntivirusHealthKind, BatteryMonitoringKind, BitlockerStatusKind,
		CPUKind, CriticalEventsKind, CustomFieldsKind, DeviceDownKind,
		DiskActiveTimeKind, DiskFreeSpaceKind, DiskTransferRateKind,
		DiskUsageKind, MemoryKind, NetworkUtilizationKind,
		OSPatchCVSSScoreKind, PatchLastInstalledKind, ProcessKind,
		ProcessResourceKind, RAIDHealthStatusKind, RebootPendingKind,
		ScriptResultKind, SoftwareKind, SystemUptimeKind, WindowsEventKind,
		WindowsServiceKind, WindowsSMARTStatusKind,
	}
}
