// Package wbflash holds what the Winbond serial flash drivers in w25n and
// w25q share: array geometry and address translation, the known-part table,
// busy polling, error causes, and the Device capability set with the
// firmware update routine written against it. OpenFT2232H connects to a
// chip through an FTDI adapter for use from a host.
//
// Datasheet sections are cited in comments as [document|section].
//
// # References:
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//
// SPI Flash
//   - [W25N01GV]: W25N01GV Winbond 3V 1G-bit Serial SLC NAND Flash Memory datasheet
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [JESD216]: JEDEC Serial Flash Discoverable Parameters
package wbflash
