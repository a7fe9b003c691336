package consent

// Consent-store table names as they appear in sqlite_schema. Windows
// 11 builds that moved the CapabilityAccessManager from the registry
// to SQLite use this layout.
const (
	TableCapabilities       = "Capabilities"
	TablePackageFamilyNames = "PackageFamilyNames"
	TableUsers              = "Users"
	TableFileIDs            = "FileIDs"
	TableProgramIDs         = "ProgramIDs"
	TableBinaryFullPaths    = "BinaryFullPaths"

	TablePackagedUsageHistory            = "PackagedUsageHistory"
	TableNonPackagedUsageHistory         = "NonPackagedUsageHistory"
	TableNonPackagedIdentityRelationship = "NonPackagedIdentityRelationship"
)

// lookupTableNames are the registration-side tables: each maps an
// integer identifier to one string value and is fully decoded in the
// first pass, before any event row is joined.
var lookupTableNames = []string{
	TableCapabilities,
	TablePackageFamilyNames,
	TableUsers,
	TableFileIDs,
	TableProgramIDs,
	TableBinaryFullPaths,
}

// Column names shared by the usage-history tables.
const (
	colID             = "ID"
	colStringValue    = "StringValue"
	colStart          = "LastUsedTimeStart"
	colStop           = "LastUsedTimeStop"
	colAccessBlocked  = "AccessBlocked"
	colCapability     = "Capability"
	colPackageFamily  = "PackageFamilyName"
	colUserSid        = "UserSid"
	colFileID         = "FileID"
	colProgramID      = "ProgramID"
	colBinaryFullPath = "BinaryFullPath"
	colLastObserved   = "LastObservedTime"
)
