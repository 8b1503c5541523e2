// ABOUTME: Static fallback catalog when the OpenAI API key is not available.
// ABOUTME: A mix of installed, outdated, disabled and search-only plugins.

package seed

import "fmt"

var staticPluginIdeas = []pluginIdea{
	{Name: "homebridge", DisplayName: "Homebridge", Description: "HomeKit support for the impatient", Author: "homebridge", InstalledVersion: "1.8.4", LatestVersion: "1.8.5", Verified: true},
	{Name: "homebridge-config-ui-x", DisplayName: "Homebridge UI", Description: "Web based management tool for Homebridge", Author: "oznu", InstalledVersion: "4.62.0", LatestVersion: "4.62.0", Platform: "config", Verified: true},
	{Name: "homebridge-hue", DisplayName: "Homebridge Hue", Description: "Philips Hue and deCONZ bridges", Author: "ebaauw", InstalledVersion: "0.13.60", LatestVersion: "0.13.64", Platform: "Hue", ChildBridge: true, Verified: true},
	{Name: "homebridge-ring", DisplayName: "Ring", Description: "Ring doorbells, cameras and alarm", Author: "dgreif", InstalledVersion: "12.1.1", LatestVersion: "12.1.1", Platform: "Ring", ChildBridge: true, Unpaired: true, Verified: true},
	{Name: "homebridge-nest", DisplayName: "Nest", Description: "Nest thermostats and protects", Author: "chrisjshull", InstalledVersion: "4.6.9", LatestVersion: "4.6.9", Platform: "Nest", Verified: true},
	{Name: "homebridge-myq", DisplayName: "myQ", Description: "Garage door openers using the myQ API", Author: "hjdhjd", InstalledVersion: "3.4.1", LatestVersion: "3.4.1", Platform: "myQ", Disabled: true},
	{Name: "homebridge-dummy", DisplayName: "Dummy Switches", Description: "Fake switches for automations", Author: "nfarina", InstalledVersion: "0.9.0", LatestVersion: "0.9.0", Accessory: "DummySwitch"},
	{Name: "homebridge-roomba-stv", DisplayName: "Roomba", Description: "iRobot Roomba vacuums", Author: "esteban-mallen", InstalledVersion: "1.4.0", LatestVersion: "1.4.0"},
	{Name: "@homebridge-plugins/homebridge-tado", DisplayName: "tado", Description: "tado smart heating", Author: "SeydX", InstalledVersion: "7.7.0", LatestVersion: "7.9.1", Platform: "TadoPlatform", ChildBridge: true, Verified: true},
	{Name: "homebridge-camera-ffmpeg", DisplayName: "Camera FFmpeg", Description: "Generic RTSP cameras via ffmpeg", Author: "Sunoo", InstalledVersion: "3.1.4", LatestVersion: "3.1.4", Platform: "Camera-ffmpeg", Verified: true},
	{Name: "homebridge-shelly-ng", DisplayName: "Shelly NG", Description: "Next generation Shelly devices", Author: "alexryd", InstalledVersion: "2.0.0", LatestVersion: "2.0.0", Platform: "ShellyNG", ChildBridge: true},
	{Name: "homebridge-z2m", DisplayName: "Zigbee2MQTT", Description: "Expose Zigbee2MQTT devices to HomeKit", Author: "itavero", LatestVersion: "1.11.0-beta.6", Verified: true},
	{Name: "homebridge-tplink-smarthome", DisplayName: "TP-Link Smart Home", Description: "TP-Link Kasa plugs and bulbs", Author: "plasticrake", LatestVersion: "8.0.1", Verified: true},
	{Name: "homebridge-hue-lights", DisplayName: "Hue Lights", Description: "Lightweight Hue lights without bridges", Author: "community", LatestVersion: "1.2.0"},
	{Name: "homebridge-ecobee3-sensors", DisplayName: "ecobee Sensors", Description: "Room sensors for ecobee thermostats", Author: "birdapi", LatestVersion: "2.2.1"},
	{Name: "homebridge-http-switch", DisplayName: "HTTP Switch", Description: "Switches backed by HTTP endpoints", Author: "Supereg", LatestVersion: "0.5.36"},
	{Name: "homebridge-ups", DisplayName: "UPS", Description: "NUT UPS status as HomeKit sensors", Author: "ad5030", LatestVersion: "1.0.3"},
	{Name: "homebridge-sonos", DisplayName: "Sonos", Description: "Sonos speakers as HomeKit switches", Author: "nfarina", LatestVersion: "0.3.2"},
}

// staticIdeas returns up to count ideas, always including the first two
// entries (the bridge host and the management plugin).
func staticIdeas(count int) []pluginIdea {
	if count <= 0 || count > len(staticPluginIdeas) {
		count = len(staticPluginIdeas)
	}
	if count < 2 {
		count = 2
	}
	out := make([]pluginIdea, count)
	copy(out, staticPluginIdeas[:count])
	return out
}

func staticUsers() []UserData {
	return []UserData{
		{Username: "admin", Name: "Administrator", Password: "admin", Admin: true},
		{Username: "viewer", Name: "Read Only", Password: "viewer", Admin: false},
	}
}

// LogLine returns a synthetic runtime log line for tick n.
func LogLine(n int) string {
	messages := []string{
		"[Homebridge Hue] Living Room Lamp: set on to true",
		"[Ring] Front Door: motion detected",
		"[Nest] Hallway: current temperature 21.5",
		"[tado] Bedroom: heating power 34%",
		"[Shelly NG] Kitchen Plug: power 12.4 W",
		"[homebridge] Homebridge is running on port 51826.",
	}
	return fmt.Sprintf("%s (#%d)", messages[n%len(messages)], n)
}
