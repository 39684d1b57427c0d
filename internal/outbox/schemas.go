package outbox

const territoryClaimedSchema = `{
  "type": "object",
  "title": "TerritoryClaimed",
  "properties": {
    "territory_id": {"type": "string"},
    "realm_id": {"type": "string"},
    "owner_uid": {"type": "string"},
    "area_sq_m": {"type": "number"},
    "claimed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["territory_id", "realm_id", "owner_uid", "area_sq_m", "claimed_at"],
  "additionalProperties": false
}`

const momentRecordedSchema = `{
  "type": "object",
  "title": "MomentRecorded",
  "properties": {
    "moment_id": {"type": "string"},
    "realm_id": {"type": "string"},
    "owner_uid": {"type": "string"},
    "territory_id": {"type": "string"},
    "distance_meters": {"type": "number"},
    "duration_sec": {"type": "number"},
    "xp_awarded": {"type": "integer"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["moment_id", "realm_id", "owner_uid", "territory_id", "distance_meters", "duration_sec", "xp_awarded", "recorded_at"],
  "additionalProperties": false
}`

const profileLevelChangedSchema = `{
  "type": "object",
  "title": "ProfileLevelChanged",
  "properties": {
    "realm_id": {"type": "string"},
    "uid": {"type": "string"},
    "level": {"type": "integer"},
    "xp": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["realm_id", "uid", "level", "xp", "occurred_at"],
  "additionalProperties": false
}`
