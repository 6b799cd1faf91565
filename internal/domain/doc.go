// Package domain models GeoSphere Austria weather warnings.
//
// # Data Source
//
// Warnings come from the GeoSphere warning API, queried by coordinate:
//
//	GET https://warnapi.geosphere.at/v1/warnings/coords?lat=48.2082&lon=16.3738&type=EVENT
//
// The response is a GeoJSON-like FeatureCollection. Only the business fields
// under each feature's "properties" object are used; geometry is ignored
// because the query already selects warnings for the requested point.
//
// # Payload Conventions
//
// Envelope:
//
//	{"type": "FeatureCollection", "features": [{"properties": {...}}, ...]}
//	Any other top-level shape is a [MalformedPayloadError]. The API may
//	legitimately answer with an alternate shape, so a malformed payload is
//	treated as zero active warnings rather than a failed refresh.
//
// Field names (properties → [WarningRecord]):
//
//	id, headline, description, instruction   → same name
//	type, typeName                           → TypeCode, TypeName
//	severity, severityName                   → SeverityCode, SeverityName
//	urgency, certainty                       → same name
//	start, end                               → Start, End
//	altitudeStart, altitudeEnd               → AltitudeStart, AltitudeEnd
//
// Every property, known or not, is also kept verbatim in [WarningRecord.Raw].
//
// Time format:
//
//	start and end are Unix epochs in milliseconds, e.g. 1700000000000
//	= 2023-11-14T22:13:20Z. Values outside years 1–9999, or values that are
//	not numeric, yield a [RecordParseError]; the record keeps its other fields
//	and is treated as having no declared window.
//
// # Active Window
//
// A record with both bounds is active when start <= now <= end, inclusive at
// both ends and evaluated in UTC. The source cannot express an open-ended
// window unambiguously, so records missing a bound are handled by a
// [WindowPolicy]: [IncludeUnbounded] (the default) or [ExcludeUnbounded].
package domain
