package ui

// iconBytes is a 16x16 PNG used as the tray icon.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x90, 0xab, 0x68, 0xfa,
	0x4f, 0x09, 0x66, 0x18, 0x86, 0x06, 0x7c, 0xf8, 0xf0, 0x01, 0x2f, 0x1e,
	0x35, 0x60, 0x64, 0x18, 0x30, 0x02, 0xf3, 0x02, 0x00, 0x72, 0x43, 0x85,
	0x1f, 0x3c, 0xd4, 0x38, 0x5a, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
	0x44, 0xae, 0x42, 0x60, 0x82,
}
