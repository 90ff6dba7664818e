package frame

// MAVLink message id vocabulary, carried over from the MAVLink
// constant table the original protocol handler declared. The
// classify package declares its own copies of the ids its tables use
// and does not import these.
const (
	MAVLinkMsgHeartbeat         = 0
	MAVLinkMsgSysStatus         = 1
	MAVLinkMsgSystemTime        = 2
	MAVLinkMsgPing              = 4
	MAVLinkMsgSetMode           = 11
	MAVLinkMsgParamRequestList  = 21
	MAVLinkMsgParamValue        = 22
	MAVLinkMsgParamSet          = 23
	MAVLinkMsgGPSRawInt         = 24
	MAVLinkMsgGPSStatus         = 25
	MAVLinkMsgScaledIMU         = 26
	MAVLinkMsgRawIMU            = 27
	MAVLinkMsgRawPressure       = 28
	MAVLinkMsgScaledPressure    = 29
	MAVLinkMsgAttitude          = 30
	MAVLinkMsgAttitudeQuat      = 31
	MAVLinkMsgLocalPositionNED  = 32
	MAVLinkMsgGlobalPositionInt = 33
	MAVLinkMsgMissionRequest    = 40
	MAVLinkMsgMissionRequestLst = 43
	MAVLinkMsgMissionCount      = 44
	MAVLinkMsgMissionAck        = 47
	MAVLinkMsgRCChannels        = 65
	MAVLinkMsgRequestDataStream = 66
	MAVLinkMsgCommandLong       = 76
	MAVLinkMsgCommandAck        = 77
	MAVLinkMsgSetAttitudeTarget = 82
	MAVLinkMsgSetPosTargetLocal = 84
	MAVLinkMsgSetPosTargetGlob  = 86
	MAVLinkMsgDoSetMode         = 176
)

// MAVLink command/mode constants from the same table; no other
// package in this module references them.
const (
	MAVCmdComponentArmDisarm = 400
	MAVCmdNavReturnToLaunch  = 20
	MAVCmdNavLand            = 21
	MAVCmdDoSetMode          = 176
)
